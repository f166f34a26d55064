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

// UpsertObject writes the verbatim iCalendar body under (calendarID, uid),
// rotating the calendar's ctag/sync_token and recording a SyncChange row in
// the same transaction, per the atomic-mutation contract (§4.A).
func (s *Store) UpsertObject(ctx context.Context, calendarID, uid, icalData string, fields store.Fields) (*store.CalendarObject, bool, error) {
	var obj *store.CalendarObject
	var isNew bool

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var existingID string
		err := tx.QueryRow(ctx, `SELECT id FROM calendar_objects WHERE calendar_id = $1 AND uid = $2`, calendarID, uid).Scan(&existingID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			isNew = true
		case err != nil:
			return err
		}

		now := time.Now().UTC()
		etag := uuid.New().String()
		changeType := store.ChangeModified
		if isNew {
			changeType = store.ChangeCreated
			id := uuid.Must(uuid.NewV7()).String()
			_, err = tx.Exec(ctx, `
				INSERT INTO calendar_objects (
					id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, id, calendarID, uid, etag, icalData, fields.ComponentType, fields.DTStart, fields.DTEnd, fields.Summary, now, now)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE calendar_objects
				SET etag = $1, ical_data = $2, component_type = $3, dtstart = $4, dtend = $5, summary = $6, updated_at = $7
				WHERE calendar_id = $8 AND uid = $9
			`, etag, icalData, fields.ComponentType, fields.DTStart, fields.DTEnd, fields.Summary, now, calendarID, uid)
		}
		if err != nil {
			return err
		}

		syncToken, err := rotateCalendar(ctx, tx, calendarID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO sync_changes (calendar_id, object_uid, change_type, sync_token, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, calendarID, uid, changeType, syncToken, now); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
			SELECT id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at
			FROM calendar_objects WHERE calendar_id = $1 AND uid = $2
		`, calendarID, uid)
		obj, err = scanObject(row)
		return err
	})

	return obj, isNew, err
}

func (s *Store) GetObjectByUID(ctx context.Context, calendarID, uid string) (*store.CalendarObject, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at
		FROM calendar_objects WHERE calendar_id = $1 AND uid = $2
	`, calendarID, uid)
	obj, err := scanObject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return obj, err
}

func (s *Store) DeleteObject(ctx context.Context, calendarID, uid string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM calendar_objects WHERE calendar_id = $1 AND uid = $2`, calendarID, uid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrNotFound
		}

		syncToken, err := rotateCalendar(ctx, tx, calendarID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO sync_changes (calendar_id, object_uid, change_type, sync_token, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, calendarID, uid, store.ChangeDeleted, syncToken, time.Now().UTC())
		return err
	})
}

func (s *Store) ListObjects(ctx context.Context, calendarID string) ([]*store.CalendarObject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at
		FROM calendar_objects WHERE calendar_id = $1 ORDER BY uid
	`, calendarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

func (s *Store) ListObjectsInRange(ctx context.Context, calendarID, start, end string) ([]*store.CalendarObject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at
		FROM calendar_objects
		WHERE calendar_id = $1
		  AND (dtstart = '' OR dtstart < $2)
		  AND (dtend = '' OR dtend > $3)
		ORDER BY dtstart
	`, calendarID, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

func (s *Store) GetObjectsByUIDs(ctx context.Context, calendarID string, uids []string) ([]*store.CalendarObject, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at
		FROM calendar_objects WHERE calendar_id = $1 AND uid = ANY($2)
	`, calendarID, uids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

func (s *Store) GetSyncChangesSince(ctx context.Context, calendarID, token string) ([]*store.SyncChange, error) {
	var afterID int64
	if token != "" {
		err := s.pool.QueryRow(ctx, `
			SELECT id FROM sync_changes WHERE calendar_id = $1 AND sync_token = $2 ORDER BY id DESC LIMIT 1
		`, calendarID, token).Scan(&afterID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrPreconditionFailed
		}
		if err != nil {
			return nil, err
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, calendar_id, object_uid, change_type, sync_token, created_at
		FROM sync_changes WHERE calendar_id = $1 AND id > $2 ORDER BY id
	`, calendarID, afterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.SyncChange
	for rows.Next() {
		var c store.SyncChange
		if err := rows.Scan(&c.ID, &c.CalendarID, &c.ObjectUID, &c.ChangeType, &c.SyncToken, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func scanObject(row rowScanner) (*store.CalendarObject, error) {
	var o store.CalendarObject
	if err := row.Scan(&o.ID, &o.CalendarID, &o.UID, &o.ETag, &o.ICalData, &o.ComponentType,
		&o.DTStart, &o.DTEnd, &o.Summary, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func collectObjects(rows pgx.Rows) ([]*store.CalendarObject, error) {
	var out []*store.CalendarObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
