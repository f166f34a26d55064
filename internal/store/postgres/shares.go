package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/store"
)

func (s *Store) CreateShare(ctx context.Context, calendarID, userID, permission string) (*store.CalendarShare, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO calendar_shares (id, calendar_id, user_id, permission, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (calendar_id, user_id) DO UPDATE SET permission = excluded.permission
	`, id, calendarID, userID, permission, now)
	if err != nil {
		return nil, err
	}
	return s.GetShare(ctx, calendarID, userID)
}

func (s *Store) DeleteShare(ctx context.Context, calendarID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM calendar_shares WHERE calendar_id = $1 AND user_id = $2
	`, calendarID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) GetShare(ctx context.Context, calendarID, userID string) (*store.CalendarShare, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, calendar_id, user_id, permission, created_at
		FROM calendar_shares WHERE calendar_id = $1 AND user_id = $2
	`, calendarID, userID)

	var sh store.CalendarShare
	err := row.Scan(&sh.ID, &sh.CalendarID, &sh.UserID, &sh.Permission, &sh.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Store) ListSharesReceived(ctx context.Context, userID string) ([]*store.CalendarShare, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, calendar_id, user_id, permission, created_at
		FROM calendar_shares WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.CalendarShare
	for rows.Next() {
		var sh store.CalendarShare
		if err := rows.Scan(&sh.ID, &sh.CalendarID, &sh.UserID, &sh.Permission, &sh.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sh)
	}
	return out, rows.Err()
}
