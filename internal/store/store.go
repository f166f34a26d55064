// Package store defines the durable storage contract (§3, §4.A): the six
// entities and the atomic operations that preserve their invariants. Two
// backends implement Store — sqlite and postgres — following the teacher's
// split of one interface with interchangeable SQL-flavored implementations.
package store

import (
	"context"
	"time"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Calendar struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Color       string
	Timezone    string
	CTag        string
	SyncToken   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CalendarObject struct {
	ID            string
	CalendarID    string
	UID           string
	ETag          string
	ICalData      string
	ComponentType string
	DTStart       string
	DTEnd         string
	Summary       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fields is the set of extracted index columns a write refreshes.
type Fields struct {
	ComponentType string
	DTStart       string
	DTEnd         string
	Summary       string
}

const (
	PermissionRead      = "read"
	PermissionReadWrite = "read-write"
)

type CalendarShare struct {
	ID         string
	CalendarID string
	UserID     string
	Permission string
	CreatedAt  time.Time
}

const (
	ChangeCreated  = "created"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

type SyncChange struct {
	ID         int64
	CalendarID string
	ObjectUID  string
	ChangeType string
	SyncToken  string
	CreatedAt  time.Time
}

type McpToken struct {
	ID        string
	UserID    string
	TokenHash string
	Name      string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Store is the durable storage contract. Every mutating operation that
// touches calendar contents rotates the owning calendar's ctag and
// sync_token and appends a SyncChange row in the same atomic unit (§4.A).
type Store interface {
	Close() error

	// Users
	CreateUser(ctx context.Context, u User) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error

	// Calendars
	CreateCalendar(ctx context.Context, c Calendar) (*Calendar, error)
	CreateCalendarWithID(ctx context.Context, id string, c Calendar) (*Calendar, error)
	GetCalendar(ctx context.Context, id string) (*Calendar, error)
	UpdateCalendarProperties(ctx context.Context, id string, name, description, color, timezone *string) (*Calendar, error)
	DeleteCalendar(ctx context.Context, id string) error
	ListCalendarsOwnedBy(ctx context.Context, userID string) ([]*Calendar, error)
	ListCalendarsVisibleTo(ctx context.Context, userID string) ([]*Calendar, error)

	// Calendar objects
	UpsertObject(ctx context.Context, calendarID, uid, icalData string, fields Fields) (obj *CalendarObject, isNew bool, err error)
	GetObjectByUID(ctx context.Context, calendarID, uid string) (*CalendarObject, error)
	DeleteObject(ctx context.Context, calendarID, uid string) error
	ListObjects(ctx context.Context, calendarID string) ([]*CalendarObject, error)
	ListObjectsInRange(ctx context.Context, calendarID, start, end string) ([]*CalendarObject, error)
	GetObjectsByUIDs(ctx context.Context, calendarID string, uids []string) ([]*CalendarObject, error)

	// Sync
	GetSyncChangesSince(ctx context.Context, calendarID, token string) ([]*SyncChange, error)

	// Shares
	CreateShare(ctx context.Context, calendarID, userID, permission string) (*CalendarShare, error)
	DeleteShare(ctx context.Context, calendarID, userID string) error
	GetShare(ctx context.Context, calendarID, userID string) (*CalendarShare, error)
	ListSharesReceived(ctx context.Context, userID string) ([]*CalendarShare, error)

	// MCP tokens
	CreateMCPToken(ctx context.Context, t McpToken) (*McpToken, error)
	ListAllMCPTokens(ctx context.Context) ([]*McpToken, error)
	ListMCPTokensByUser(ctx context.Context, userID string) ([]*McpToken, error)
	DeleteMCPToken(ctx context.Context, id string) error
}

// Access is the derived invariant from §3: a user has read access to a
// calendar iff they own it or hold any share; write access iff owner or
// share permission is read-write; delete of the calendar itself iff owner.
type Access struct {
	IsOwner    bool
	Permission string // "" if neither owner nor shared
}

func (a Access) CanRead() bool {
	return a.IsOwner || a.Permission != ""
}

func (a Access) CanWrite() bool {
	return a.IsOwner || a.Permission == PermissionReadWrite
}

func (a Access) CanDelete() bool {
	return a.IsOwner
}

// ResolveAccess computes the caller's Access to cal, consulting a share
// lookup only when the caller isn't the owner.
func ResolveAccess(ctx context.Context, s Store, userID string, cal *Calendar) (Access, error) {
	if cal.OwnerID == userID {
		return Access{IsOwner: true}, nil
	}
	share, err := s.GetShare(ctx, cal.ID, userID)
	if err != nil {
		return Access{}, err
	}
	if share == nil {
		return Access{}, nil
	}
	return Access{Permission: share.Permission}, nil
}
