package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/store"
)

func (s *Store) CreateMCPToken(ctx context.Context, t store.McpToken) (*store.McpToken, error) {
	id := t.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mcp_tokens (id, user_id, token_hash, name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, t.UserID, t.TokenHash, t.Name, now, nullableTime(t.ExpiresAt))
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at FROM mcp_tokens WHERE id = ?
	`, id)
	return scanToken(row)
}

func (s *Store) ListAllMCPTokens(ctx context.Context) ([]*store.McpToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at FROM mcp_tokens
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *Store) ListMCPTokensByUser(ctx context.Context, userID string) ([]*store.McpToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at FROM mcp_tokens WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *Store) DeleteMCPToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mcp_tokens WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, apperr.ErrNotFound)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func scanToken(row rowScanner) (*store.McpToken, error) {
	var t store.McpToken
	var expiresAt sql.NullTime
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Name, &t.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return &t, nil
}

func collectTokens(rows *sql.Rows) ([]*store.McpToken, error) {
	var out []*store.McpToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
