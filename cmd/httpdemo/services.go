package main

import (
	"github.com/a-peyrard/blackmagic/depends"
	"github.com/a-peyrard/blackmagic/logging"
)

type (
	RequestContext struct {
		RequestID string
		Token     string
		UserID    int
	}

	HealthConfig struct {
		Code   int
		Banner string
	}

	Logger struct{}

	AuthService struct{}

	UserRepository struct {
		users map[int]string
	}

	Response struct {
		Code int
		Body string
	}
)

func (l *Logger) Info(requestID, msg string) {
	logging.Get().Info().Str("requestId", requestID).Msg(msg)
}

// ValidateAsync accepts the "allow" token only.
func (a *AuthService) ValidateAsync(token string) *depends.Task[bool] {
	return depends.NewTask(func(*depends.Awaiter) (bool, error) {
		return token == "allow", nil
	})
}

func (r *UserRepository) GetUserNameAsync(id int) *depends.Task[string] {
	return depends.NewTask(func(*depends.Awaiter) (string, error) {
		name, ok := r.users[id]
		if !ok {
			return "unknown", nil
		}
		return name, nil
	})
}

var (
	sharedLogger = &Logger{}
	sharedAuth   = &AuthService{}
	sharedUsers  = &UserRepository{users: map[int]string{
		1: "alice",
		2: "bob",
		7: "charlie",
	}}
	sharedHealth = &HealthConfig{Code: 202, Banner: "healthy (from async reference factory)"}
)

func LoggerFactory() depends.Ref[Logger] {
	return depends.RefTo(sharedLogger)
}

func AuthFactory() depends.Ref[AuthService] {
	return depends.RefTo(sharedAuth)
}

func UserRepoFactory() depends.Ref[UserRepository] {
	return depends.RefTo(sharedUsers)
}

// CurrentRequest is replaced by the request of the session; outside a request it
// builds an anonymous one that is never authorized.
func CurrentRequest() *RequestContext {
	return &RequestContext{RequestID: "fallback-request", Token: "deny"}
}

func HealthConfigFactory() *HealthConfig {
	return &HealthConfig{Code: 200, Banner: "healthy (from pointer factory)"}
}

func AsyncHealthConfigFactory() *depends.Task[*HealthConfig] {
	return depends.NewTask(func(*depends.Awaiter) (*HealthConfig, error) {
		return &HealthConfig{Code: 201, Banner: "healthy (from async factory)"}, nil
	})
}

func AsyncHealthConfigRefFactory() *depends.Task[depends.Ref[HealthConfig]] {
	return depends.Resolved(depends.RefTo(sharedHealth))
}
