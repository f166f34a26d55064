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

func (s *Store) CreateCalendar(ctx context.Context, c store.Calendar) (*store.Calendar, error) {
	return s.CreateCalendarWithID(ctx, uuid.Must(uuid.NewV7()).String(), c)
}

func (s *Store) CreateCalendarWithID(ctx context.Context, id string, c store.Calendar) (*store.Calendar, error) {
	color := c.Color
	if color == "" {
		color = "#0E61B9"
	}
	timezone := c.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	now := time.Now().UTC()
	ctag := uuid.New().String()
	syncToken := "sync-" + uuid.Must(uuid.NewV7()).String()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO calendars (
			id, owner_id, name, description, color, timezone,
			ctag, sync_token, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, c.OwnerID, c.Name, c.Description, color, timezone, ctag, syncToken, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetCalendar(ctx, id)
}

func (s *Store) GetCalendar(ctx context.Context, id string) (*store.Calendar, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, color, timezone, ctag, sync_token, created_at, updated_at
		FROM calendars WHERE id = $1
	`, id)
	c, err := scanCalendar(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) UpdateCalendarProperties(ctx context.Context, id string, name, description, color, timezone *string) (*store.Calendar, error) {
	existing, err := s.GetCalendar(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.ErrNotFound
	}
	if name != nil {
		existing.Name = *name
	}
	if description != nil {
		existing.Description = *description
	}
	if color != nil {
		existing.Color = *color
	}
	if timezone != nil {
		existing.Timezone = *timezone
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE calendars SET name = $1, description = $2, color = $3, timezone = $4, updated_at = $5
		WHERE id = $6
	`, existing.Name, existing.Description, existing.Color, existing.Timezone, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.ErrNotFound
	}
	return s.GetCalendar(ctx, id)
}

func (s *Store) DeleteCalendar(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calendars WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) ListCalendarsOwnedBy(ctx context.Context, userID string) ([]*store.Calendar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, color, timezone, ctag, sync_token, created_at, updated_at
		FROM calendars WHERE owner_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalendars(rows)
}

func (s *Store) ListCalendarsVisibleTo(ctx context.Context, userID string) ([]*store.Calendar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT c.id, c.owner_id, c.name, c.description, c.color, c.timezone, c.ctag, c.sync_token, c.created_at, c.updated_at
		FROM calendars c
		LEFT JOIN calendar_shares sh ON sh.calendar_id = c.id AND sh.user_id = $1
		WHERE c.owner_id = $1 OR sh.user_id IS NOT NULL
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCalendars(rows)
}

// rotateCalendar bumps ctag and sync_token and must run inside the same
// transaction as the content mutation it accompanies (§4.A).
func rotateCalendar(ctx context.Context, tx pgx.Tx, calendarID string) (newSyncToken string, err error) {
	newSyncToken = "sync-" + uuid.Must(uuid.NewV7()).String()
	_, err = tx.Exec(ctx, `
		UPDATE calendars SET ctag = $1, sync_token = $2, updated_at = $3 WHERE id = $4
	`, uuid.New().String(), newSyncToken, time.Now().UTC(), calendarID)
	return newSyncToken, err
}

func scanCalendar(row rowScanner) (*store.Calendar, error) {
	var c store.Calendar
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Color, &c.Timezone,
		&c.CTag, &c.SyncToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCalendars(rows pgx.Rows) ([]*store.Calendar, error) {
	var out []*store.Calendar
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
