package auth

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/hash"
	"github.com/caldav-mcp/server/internal/store"
	"github.com/caldav-mcp/server/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "auth.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func basicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestStrictBasic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	encoded, err := hash.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := s.CreateUser(ctx, store.User{Username: "alice", PasswordHash: encoded}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	strategy := &StrictBasic{Store: s}

	p, err := strategy.Authenticate(ctx, basicHeader("alice", "s3cret"))
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.Username != "alice" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := strategy.Authenticate(ctx, basicHeader("alice", "wrong")); !apperr.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := strategy.Authenticate(ctx, ""); err == nil {
		t.Fatal("expected error for missing header")
	}
}

func TestBasicOrPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, store.User{Username: "bob", PasswordHash: "unused"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	strategy := NewBasicOrPath(s)

	p, err := strategy.Authenticate(ctx, "", "bob")
	if err != nil {
		t.Fatalf("Authenticate (path fallback): %v", err)
	}
	if p.Username != "bob" {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := strategy.Authenticate(ctx, "", "nobody"); !apperr.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown path user, got %v", err)
	}
}

func TestBearer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, store.User{Username: "carol", PasswordHash: "unused"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	encoded, err := hash.Hash("tok-123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if _, err := s.CreateMCPToken(ctx, store.McpToken{UserID: u.ID, TokenHash: encoded, Name: "cli"}); err != nil {
		t.Fatalf("CreateMCPToken: %v", err)
	}

	strategy := &Bearer{Store: s}

	p, err := strategy.Authenticate(ctx, "Bearer tok-123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if p.UserID != u.ID {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if _, err := strategy.Authenticate(ctx, "Bearer wrong-token"); !apperr.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
