package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/store"
)

func (s *Store) CreateShare(ctx context.Context, calendarID, userID, permission string) (*store.CalendarShare, error) {
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_shares (id, calendar_id, user_id, permission, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(calendar_id, user_id) DO UPDATE SET permission = excluded.permission
	`, id, calendarID, userID, permission, now)
	if err != nil {
		return nil, err
	}

	return s.GetShare(ctx, calendarID, userID)
}

func (s *Store) DeleteShare(ctx context.Context, calendarID, userID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM calendar_shares WHERE calendar_id = ? AND user_id = ?
	`, calendarID, userID)
	if err != nil {
		return err
	}
	return requireAffected(result, apperr.ErrNotFound)
}

func (s *Store) GetShare(ctx context.Context, calendarID, userID string) (*store.CalendarShare, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, calendar_id, user_id, permission, created_at
		FROM calendar_shares WHERE calendar_id = ? AND user_id = ?
	`, calendarID, userID)

	var sh store.CalendarShare
	err := row.Scan(&sh.ID, &sh.CalendarID, &sh.UserID, &sh.Permission, &sh.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Store) ListSharesReceived(ctx context.Context, userID string) ([]*store.CalendarShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, calendar_id, user_id, permission, created_at
		FROM calendar_shares WHERE user_id = ? ORDER BY created_at
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
