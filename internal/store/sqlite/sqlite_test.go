package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, store.User{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got == nil || got.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}

	missing, err := s.GetUserByUsername(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername(missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing user, got %+v", missing)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := s.DeleteUser(ctx, u.ID); !apperr.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUpsertObjectRotatesCalendarState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner, err := s.CreateUser(ctx, store.User{Username: "bob", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	cal, err := s.CreateCalendar(ctx, store.Calendar{OwnerID: owner.ID, Name: "Work"})
	if err != nil {
		t.Fatalf("CreateCalendar: %v", err)
	}
	initialToken := cal.SyncToken

	obj, isNew, err := s.UpsertObject(ctx, cal.ID, "uid-1", "BEGIN:VEVENT\r\nUID:uid-1\r\nEND:VEVENT\r\n", store.Fields{
		ComponentType: "VEVENT",
		Summary:       "Standup",
	})
	if err != nil {
		t.Fatalf("UpsertObject: %v", err)
	}
	if !isNew {
		t.Fatal("expected isNew true on first write")
	}
	if obj.ETag == "" {
		t.Fatal("expected non-empty etag")
	}

	afterCreate, err := s.GetCalendar(ctx, cal.ID)
	if err != nil {
		t.Fatalf("GetCalendar: %v", err)
	}
	if afterCreate.SyncToken == initialToken {
		t.Fatal("expected sync_token to rotate on create")
	}
	if afterCreate.CTag == cal.CTag {
		t.Fatal("expected ctag to rotate on create")
	}

	// The token a calendar is created with is never written to the change
	// log, so the store reports it as unknown (callers answer that with a
	// full resync); the empty token replays the whole log.
	if _, err := s.GetSyncChangesSince(ctx, cal.ID, initialToken); !apperr.Is(err, apperr.ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed for the creation token, got %v", err)
	}
	changes, err := s.GetSyncChangesSince(ctx, cal.ID, "")
	if err != nil {
		t.Fatalf("GetSyncChangesSince: %v", err)
	}
	if len(changes) != 1 || changes[0].ChangeType != store.ChangeCreated {
		t.Fatalf("unexpected changes: %+v", changes)
	}

	_, isNew, err = s.UpsertObject(ctx, cal.ID, "uid-1", "BEGIN:VEVENT\r\nUID:uid-1\r\nSUMMARY:Updated\r\nEND:VEVENT\r\n", store.Fields{
		ComponentType: "VEVENT",
		Summary:       "Updated",
	})
	if err != nil {
		t.Fatalf("UpsertObject (update): %v", err)
	}
	if isNew {
		t.Fatal("expected isNew false on second write")
	}

	if err := s.DeleteObject(ctx, cal.ID, "uid-1"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if err := s.DeleteObject(ctx, cal.ID, "uid-1"); !apperr.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on redundant delete, got %v", err)
	}
}

func TestSharesAndAccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner, _ := s.CreateUser(ctx, store.User{Username: "owner", PasswordHash: "hash"})
	other, _ := s.CreateUser(ctx, store.User{Username: "other", PasswordHash: "hash"})
	cal, err := s.CreateCalendar(ctx, store.Calendar{OwnerID: owner.ID, Name: "Shared"})
	if err != nil {
		t.Fatalf("CreateCalendar: %v", err)
	}

	access, err := store.ResolveAccess(ctx, s, other.ID, cal)
	if err != nil {
		t.Fatalf("ResolveAccess: %v", err)
	}
	if access.CanRead() {
		t.Fatal("expected no access before share")
	}

	if _, err := s.CreateShare(ctx, cal.ID, other.ID, store.PermissionRead); err != nil {
		t.Fatalf("CreateShare: %v", err)
	}

	access, err = store.ResolveAccess(ctx, s, other.ID, cal)
	if err != nil {
		t.Fatalf("ResolveAccess: %v", err)
	}
	if !access.CanRead() || access.CanWrite() {
		t.Fatalf("unexpected access: %+v", access)
	}

	visible, err := s.ListCalendarsVisibleTo(ctx, other.ID)
	if err != nil {
		t.Fatalf("ListCalendarsVisibleTo: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != cal.ID {
		t.Fatalf("unexpected visible calendars: %+v", visible)
	}
}
