package supervisor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/config"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := &config.Config{
		CalDAV:      config.HTTPConfig{Addr: "127.0.0.1:0"},
		MCP:         config.HTTPConfig{Addr: "127.0.0.1:0"},
		Storage:     config.StorageConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")},
		MaxICSBytes: 256 * 1024,
	}

	sup, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
