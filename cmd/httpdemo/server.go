package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-peyrard/blackmagic/decorators"
	"github.com/a-peyrard/blackmagic/depends"
	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg        *Config
	router     chi.Router
	sched      *depends.Scheduler
	registry   *prometheus.Registry
	routeCalls *prometheus.CounterVec
	timing     *decorators.Timing
	access     *decorators.Logging
	unbind     []func()
}

func NewServer(cfg *Config) (*Server, error) {
	registry := prometheus.NewRegistry()
	routeCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "httpdemo",
		Name:      "route_calls_total",
		Help:      "Calls that reached a route handler, by outcome.",
	}, []string{"method", "route", "outcome"})
	if err := registry.Register(routeCalls); err != nil {
		return nil, fmt.Errorf("unable to register route metrics:\n\t%w", err)
	}
	if err := metrics.Default().Register(registry); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		router:     chi.NewRouter(),
		sched:      depends.NewScheduler(),
		registry:   registry,
		routeCalls: routeCalls,
		timing:     decorators.NewTiming(nil),
		access:     decorators.NewLogging(logging.Get(), decorators.AtLevel(zerolog.InfoLevel)),
	}
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mount(s, http.MethodGet, "/users/{id}", HandleGetUser, func(ctx context.Context) *depends.Task[Response] {
		return HandleGetUserInjected(ctx, depends.Ptr[UserRepository](), depends.Ptr[Logger](), depends.Ptr[RequestContext]())
	})
	mount(s, http.MethodGet, "/health", HandleHealth, func(ctx context.Context) *depends.Task[Response] {
		return HandleHealthInjected(ctx, depends.Ptr[HealthConfig](), depends.Ptr[Logger](), depends.Ptr[RequestContext]())
	})
	mount(s, http.MethodGet, "/health/async", HandleAsyncHealth, func(ctx context.Context) *depends.Task[Response] {
		return HandleAsyncHealthInjected(ctx, depends.Ptr[HealthConfig](), depends.Ptr[Logger](), depends.Ptr[RequestContext]())
	})
	mount(s, http.MethodGet, "/health/async-ref", HandleAsyncHealthRef, func(ctx context.Context) *depends.Task[Response] {
		return HandleAsyncHealthRefInjected(ctx, depends.RefOf[HealthConfig](), depends.Ptr[Logger](), depends.Ptr[RequestContext]())
	})
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Scheduler() *depends.Scheduler {
	return s.sched
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen.Addr, Handler: s.router}
	errs := make(chan error, 1)
	go func() {
		logging.Get().Info().Str("addr", srv.Addr).Msg("http server listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed:\n\t%w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Listen.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed:\n\t%w", err)
	}
	logging.Get().Info().Msg("http server stopped")
	return nil
}

// Close removes the route decorators from their handlers.
func (s *Server) Close() {
	for _, unbind := range s.unbind {
		unbind()
	}
	s.unbind = nil
}
