// Package supervisor owns the process's two HTTP listeners (§4.H): the
// CalDAV dispatcher and the MCP dispatcher, both against one shared Store.
// Grounded on the teacher's internal/httpserver package — same
// NewServer/Start/Shutdown shape — generalized from one listener to two.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/caldav"
	"github.com/caldav-mcp/server/internal/config"
	"github.com/caldav-mcp/server/internal/mcp"
	"github.com/caldav-mcp/server/internal/store"
	"github.com/caldav-mcp/server/internal/store/postgres"
	"github.com/caldav-mcp/server/internal/store/sqlite"
)

// Supervisor runs the CalDAV and MCP listeners concurrently and shuts both
// down together. Request handlers share no mutable state besides the
// Store (§5).
type Supervisor struct {
	caldavSrv *http.Server
	mcpSrv    *http.Server
	store     store.Store
	logger    zerolog.Logger
}

// New opens the configured store, runs its migrations (done inside the
// store constructors, matching the teacher's backends), and builds both
// dispatchers, but does not start listening yet.
func New(cfg *config.Config, logger zerolog.Logger) (*Supervisor, error) {
	s, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	caldavHandlers := caldav.New(s, cfg, logger)
	mcpHandlers := mcp.New(s, logger)

	return &Supervisor{
		caldavSrv: &http.Server{
			Addr:         cfg.CalDAV.Addr,
			Handler:      caldavHandlers,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		mcpSrv: &http.Server{
			Addr:         cfg.MCP.Addr,
			Handler:      mcpHandlers,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		store:  s,
		logger: logger,
	}, nil
}

func openStore(cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(context.Background(), cfg.Storage.DSN, logger)
	case "sqlite":
		return sqlite.New(cfg.Storage.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}

// Run starts both listeners and blocks until ctx is cancelled (typically by
// a SIGINT/SIGTERM handler in cmd/caldav-mcpd), then shuts both down.
func (s *Supervisor) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info().Str("addr", s.caldavSrv.Addr).Msg("caldav listening")
		if err := s.caldavSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("caldav server: %w", err)
		}
	}()
	go func() {
		s.logger.Info().Str("addr", s.mcpSrv.Addr).Msg("mcp listening")
		if err := s.mcpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("mcp server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		s.shutdown()
		return err
	}

	return s.shutdown()
}

func (s *Supervisor) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var firstErr error
	if err := s.caldavSrv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("caldav shutdown: %w", err)
	}
	if err := s.mcpSrv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("mcp shutdown: %w", err)
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("store close: %w", err)
	}
	return firstErr
}
