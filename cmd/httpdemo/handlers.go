package main

//go:generate go run ../injectgen

import (
	"context"
	"fmt"

	"github.com/a-peyrard/blackmagic/depends"
)

// LogRequest writes the access line of the current request.
// @inject named="log-request"
func LogRequest(
	ctx context.Context,
	logger *Logger, // @depends factory=LoggerFactory ref=true
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[struct{}] {
	return depends.NewTask(func(*depends.Awaiter) (struct{}, error) {
		logger.Info(req.RequestID, fmt.Sprintf("user_id=%d", req.UserID))
		return struct{}{}, nil
	})
}

// @inject named="ensure-authorized"
func EnsureAuthorized(
	ctx context.Context,
	auth *AuthService, // @depends factory=AuthFactory ref=true
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[bool] {
	return depends.NewTask(func(aw *depends.Awaiter) (bool, error) {
		return depends.Await(aw, auth.ValidateAsync(req.Token))
	})
}

// @inject named="resolve-user-id"
func ResolveUserID(
	ctx context.Context,
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[int] {
	return depends.Resolved(req.UserID)
}

// HandleGetUser answers GET /users/{id}.
// @inject named="get-user"
func HandleGetUser(
	ctx context.Context,
	repo *UserRepository, // @depends factory=UserRepoFactory ref=true
	logger *Logger, // @depends factory=LoggerFactory ref=true
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[Response] {
	return depends.NewTask(func(aw *depends.Awaiter) (Response, error) {
		if _, err := depends.Await(aw, LogRequestInjected(ctx, depends.Ptr[Logger](), depends.Ptr[RequestContext]())); err != nil {
			return Response{}, err
		}

		authorized, err := depends.Await(aw, EnsureAuthorizedInjected(ctx, depends.Ptr[AuthService](), depends.Ptr[RequestContext]()))
		if err != nil {
			return Response{}, err
		}
		if !authorized {
			logger.Info(req.RequestID, "request rejected: unauthorized")
			return Response{Code: 401, Body: "unauthorized"}, nil
		}

		id, err := depends.Await(aw, ResolveUserIDInjected(ctx, depends.Ptr[RequestContext]()))
		if err != nil {
			return Response{}, err
		}
		name, err := depends.Await(aw, repo.GetUserNameAsync(id))
		if err != nil {
			return Response{}, err
		}
		return Response{Code: 200, Body: "user=" + name}, nil
	})
}

func healthResponse(cfg *HealthConfig) *depends.Task[Response] {
	return depends.Resolved(Response{Code: cfg.Code, Body: cfg.Banner})
}

// HandleHealth uses an owned dependency built by a pointer factory.
// @inject named="health"
func HandleHealth(
	ctx context.Context,
	cfg *HealthConfig, // @depends factory=HealthConfigFactory
	logger *Logger, // @depends factory=LoggerFactory ref=true
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[Response] {
	logger.Info(req.RequestID, "health route uses a pointer factory")
	return healthResponse(cfg)
}

// @inject named="health-async"
func HandleAsyncHealth(
	ctx context.Context,
	cfg *HealthConfig, // @depends factory=AsyncHealthConfigFactory async=true
	logger *Logger, // @depends factory=LoggerFactory ref=true
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[Response] {
	logger.Info(req.RequestID, "health route uses an async factory")
	return healthResponse(cfg)
}

// @inject named="health-async-ref"
func HandleAsyncHealthRef(
	ctx context.Context,
	cfg depends.Ref[HealthConfig], // @depends factory=AsyncHealthConfigRefFactory ref=true async=true
	logger *Logger, // @depends factory=LoggerFactory ref=true
	req *RequestContext, // @depends factory=CurrentRequest
) *depends.Task[Response] {
	logger.Info(req.RequestID, "health route uses an async reference factory")
	return healthResponse(cfg.Get())
}
