// Command caldav-mcpd is the process supervisor entrypoint (§4.H): load
// config, build a logger, open the store (migrations run as part of
// opening it), bind both listeners, and block until SIGINT/SIGTERM.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/caldav-mcp/server/internal/config"
	"github.com/caldav-mcp/server/internal/logging"
	"github.com/caldav-mcp/server/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config: " + err.Error())
	}

	logger := logging.New(cfg.LogLevel)

	sup, err := supervisor.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("supervisor init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("supervisor exited with error")
		return
	}
	logger.Info().Msg("bye")
}
