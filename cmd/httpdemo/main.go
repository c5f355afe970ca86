// Command httpdemo serves a few routes whose handlers get their dependencies
// injected and run asynchronously on a scheduler driven next to the HTTP server.
//
//	curl -H 'X-Token: allow' localhost:8080/users/7
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/a-peyrard/blackmagic"
	"github.com/a-peyrard/blackmagic/config"
	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/runner"
)

func main() {
	if _, err := blackmagic.LoadAndConfigure(config.WithDotEnv()); err != nil {
		logging.Get().Fatal().Err(err).Msg("invalid blackmagic settings")
	}
	cfg, err := loadConfig()
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("invalid configuration")
	}

	server, err := NewServer(cfg)
	if err != nil {
		logging.Get().Fatal().Err(err).Msg("unable to build the server")
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runner.RunAll(ctx,
		server,
		runner.RunnableFunc(server.Scheduler().Run),
	)
	if err != nil {
		logging.Get().Error().Err(err).Msg("stopped with an error")
		os.Exit(1)
	}
}
