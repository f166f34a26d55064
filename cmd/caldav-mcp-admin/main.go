// Command caldav-mcp-admin is the external admin CLI named in spec.md §6:
// a thin front end over the Store primitives for user and MCP-token
// management. Grounded on the teacher's cmd/ldap-dav-bootstrap (flag-based
// CLI, config.Load + logging.New, a switch over the chosen storage
// backend), generalized from its single "create one calendar" operation
// into a small set of subcommands since the admin surface here covers
// users, passwords and tokens rather than one calendar bootstrap.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/config"
	"github.com/caldav-mcp/server/internal/hash"
	"github.com/caldav-mcp/server/internal/logging"
	"github.com/caldav-mcp/server/internal/store"
	"github.com/caldav-mcp/server/internal/store/postgres"
	"github.com/caldav-mcp/server/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With().Str("component", "admin").Logger()

	s, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storage init: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "create-user":
		cmdCreateUser(ctx, s, args)
	case "reset-password":
		cmdResetPassword(ctx, s, args)
	case "delete-user":
		cmdDeleteUser(ctx, s, args)
	case "list-users":
		cmdListUsers(ctx, s)
	case "create-token":
		cmdCreateToken(ctx, s, args)
	case "list-tokens":
		cmdListTokens(ctx, s, args)
	case "delete-token":
		cmdDeleteToken(ctx, s, args)
	default:
		usage()
		os.Exit(2)
	}
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

func usage() {
	fmt.Fprintln(os.Stderr, `usage: caldav-mcp-admin <command> [flags]

commands:
  create-user     -username <u> -email <e> -password <p>
  reset-password  -username <u> -password <p>
  delete-user     -username <u>
  list-users
  create-token    -username <u> -name <label>
  list-tokens     -username <u>
  delete-token    -id <token-id>`)
}

func cmdCreateUser(ctx context.Context, s store.Store, args []string) {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	email := fs.String("email", "", "email (required)")
	password := fs.String("password", "", "password (required)")
	fs.Parse(args)

	if *username == "" || *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: create-user -username <u> -email <e> -password <p>")
		os.Exit(2)
	}

	encoded, err := hash.Hash(*password)
	if err != nil {
		fatalf("hash password: %v", err)
	}
	u, err := s.CreateUser(ctx, store.User{Username: *username, Email: *email, PasswordHash: encoded})
	if err != nil {
		fatalf("create user: %v", err)
	}
	fmt.Printf("created user id=%s username=%s email=%s\n", u.ID, u.Username, u.Email)
}

func cmdResetPassword(ctx context.Context, s store.Store, args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	password := fs.String("password", "", "new password (required)")
	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: reset-password -username <u> -password <p>")
		os.Exit(2)
	}

	u, err := s.GetUserByUsername(ctx, *username)
	if err != nil {
		fatalf("lookup user: %v", err)
	}
	if u == nil {
		fatalf("no such user: %s", *username)
	}
	encoded, err := hash.Hash(*password)
	if err != nil {
		fatalf("hash password: %v", err)
	}
	if err := s.UpdateUserPassword(ctx, u.ID, encoded); err != nil {
		fatalf("update password: %v", err)
	}
	fmt.Printf("password reset for %s\n", *username)
}

func cmdDeleteUser(ctx context.Context, s store.Store, args []string) {
	fs := flag.NewFlagSet("delete-user", flag.ExitOnError)
	username := fs.String("username", "", "username (required)")
	fs.Parse(args)

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: delete-user -username <u>")
		os.Exit(2)
	}
	u, err := s.GetUserByUsername(ctx, *username)
	if err != nil {
		fatalf("lookup user: %v", err)
	}
	if u == nil {
		fatalf("no such user: %s", *username)
	}
	if err := s.DeleteUser(ctx, u.ID); err != nil {
		fatalf("delete user: %v", err)
	}
	fmt.Printf("deleted user %s\n", *username)
}

func cmdListUsers(ctx context.Context, s store.Store) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		fatalf("list users: %v", err)
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\t%s\n", u.ID, u.Username, u.Email)
	}
}

// cmdCreateToken mints an opaque "mcp_{base64url(32 random bytes)}" secret
// (§6), stores only its Argon2id hash, and prints the raw token once —
// the admin surface is the only place it is ever shown.
func cmdCreateToken(ctx context.Context, s store.Store, args []string) {
	fs := flag.NewFlagSet("create-token", flag.ExitOnError)
	username := fs.String("username", "", "owning username (required)")
	name := fs.String("name", "", "label for this token")
	fs.Parse(args)

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: create-token -username <u> -name <label>")
		os.Exit(2)
	}
	u, err := s.GetUserByUsername(ctx, *username)
	if err != nil {
		fatalf("lookup user: %v", err)
	}
	if u == nil {
		fatalf("no such user: %s", *username)
	}

	raw, err := generateMCPToken()
	if err != nil {
		fatalf("generate token: %v", err)
	}
	tokenHash, err := hash.Hash(raw)
	if err != nil {
		fatalf("hash token: %v", err)
	}
	t, err := s.CreateMCPToken(ctx, store.McpToken{UserID: u.ID, TokenHash: tokenHash, Name: *name})
	if err != nil {
		fatalf("create token: %v", err)
	}
	fmt.Printf("created token id=%s name=%q\ntoken: %s\n", t.ID, t.Name, raw)
}

func generateMCPToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "mcp_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

func cmdListTokens(ctx context.Context, s store.Store, args []string) {
	fs := flag.NewFlagSet("list-tokens", flag.ExitOnError)
	username := fs.String("username", "", "owning username (required)")
	fs.Parse(args)

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: list-tokens -username <u>")
		os.Exit(2)
	}
	u, err := s.GetUserByUsername(ctx, *username)
	if err != nil {
		fatalf("lookup user: %v", err)
	}
	if u == nil {
		fatalf("no such user: %s", *username)
	}
	tokens, err := s.ListMCPTokensByUser(ctx, u.ID)
	if err != nil {
		fatalf("list tokens: %v", err)
	}
	for _, t := range tokens {
		fmt.Printf("%s\t%s\t%s\n", t.ID, t.Name, t.CreatedAt)
	}
}

func cmdDeleteToken(ctx context.Context, s store.Store, args []string) {
	fs := flag.NewFlagSet("delete-token", flag.ExitOnError)
	id := fs.String("id", "", "token id (required)")
	fs.Parse(args)

	if *id == "" {
		fmt.Fprintln(os.Stderr, "usage: delete-token -id <token-id>")
		os.Exit(2)
	}
	if err := s.DeleteMCPToken(ctx, *id); err != nil {
		fatalf("delete token: %v", err)
	}
	fmt.Printf("deleted token %s\n", *id)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
