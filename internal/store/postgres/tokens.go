package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/store"
)

func (s *Store) CreateMCPToken(ctx context.Context, t store.McpToken) (*store.McpToken, error) {
	id := t.ID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO mcp_tokens (id, user_id, token_hash, name, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, t.UserID, t.TokenHash, t.Name, now, t.ExpiresAt)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at FROM mcp_tokens WHERE id = $1
	`, id)
	return scanToken(row)
}

func (s *Store) ListAllMCPTokens(ctx context.Context) ([]*store.McpToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at FROM mcp_tokens
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *Store) ListMCPTokensByUser(ctx context.Context, userID string) ([]*store.McpToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at FROM mcp_tokens WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *Store) DeleteMCPToken(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mcp_tokens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanToken(row rowScanner) (*store.McpToken, error) {
	var t store.McpToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Name, &t.CreatedAt, &t.ExpiresAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTokens(rows pgx.Rows) ([]*store.McpToken, error) {
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
