package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/a-peyrard/blackmagic/depends"
	"github.com/a-peyrard/blackmagic/hook"
	"github.com/a-peyrard/blackmagic/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Route is the decorator binding a handler target to one route of the router.
// It counts the calls reaching the handler by outcome.
type Route struct {
	Method  string
	Pattern string
	calls   *prometheus.CounterVec
}

var _ hook.Decorator = (*Route)(nil)

func (rt *Route) ContextSize() int {
	return 0
}

func (rt *Route) Before(_ hook.CallContext, call *hook.Invocation) bool {
	logging.Get().Debug().
		Str("route", rt.Method+" "+rt.Pattern).
		Str("target", call.Target().Name()).
		Msg("route matched")
	return true
}

func (rt *Route) After(_ hook.CallContext, call *hook.Invocation) {
	outcome := "ok"
	if _, panicking := call.Panic(); panicking {
		outcome = "panicked"
	} else if call.Vetoed() {
		outcome = "refused"
	}
	rt.calls.WithLabelValues(rt.Method, rt.Pattern, outcome).Inc()
}

// Handler is an injected route handler: every dependency is a placeholder.
type Handler func(ctx context.Context) *depends.Task[Response]

// mount decorates target with the route and serves it through handle. The route
// is removed from target when the server closes.
func mount[F any](s *Server, method, pattern string, target F, handle Handler) {
	route := &Route{Method: method, Pattern: pattern, calls: s.routeCalls}
	h, err := hook.Intercept(target, route, s.timing, s.access)
	if err != nil {
		logging.Get().Fatal().Err(err).Str("route", pattern).Msg("unable to bind route")
	}
	s.unbind = append(s.unbind, func() {
		h.Remove(route)
		h.Remove(s.timing)
		h.Remove(s.access)
	})
	s.router.Method(method, pattern, s.serve(handle))
}

// serve runs handle in a session seeded with the request, on the server's scheduler.
func (s *Server) serve(handle Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := depends.NewState()
		req := &RequestContext{
			RequestID: uuid.NewString(),
			Token:     r.Header.Get("X-Token"),
		}
		if raw := chi.URLParam(r, "id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid user id", http.StatusBadRequest)
				return
			}
			req.UserID = id
		}
		if err := depends.Provide(session, req, depends.WithFactory(CurrentRequest)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Request-Id", req.RequestID)

		task := handle(depends.WithState(r.Context(), session))
		if task == nil {
			http.Error(w, "handler refused the call", http.StatusServiceUnavailable)
			return
		}
		s.sched.Enqueue(task, session)

		select {
		case <-task.Wait():
		case <-r.Context().Done():
			logging.Get().Warn().Str("requestId", req.RequestID).Msg("request cancelled before completion")
			return
		}
		defer func() {
			if err := session.Reset(); err != nil {
				logging.Get().Warn().Err(err).Str("requestId", req.RequestID).Msg("session teardown failed")
			}
		}()

		resp, err := task.Result()
		if err != nil {
			logging.Get().Error().Err(err).Str("requestId", req.RequestID).Msg("handler failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(resp.Code)
		_, _ = fmt.Fprintf(w, "HTTP %d %s\n", resp.Code, resp.Body)
	}
}
