package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/caldav-mcp/server/internal/auth"
	"github.com/caldav-mcp/server/internal/ical"
	"github.com/caldav-mcp/server/internal/store"
)

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall decodes the {name, arguments} envelope and dispatches to
// one of the twelve tools, executing against Store with the authenticated
// caller as the effective user (§4.G).
func (h *Handlers) handleToolsCall(r *http.Request, req request, principal *auth.Principal) response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, codeInvalidParams, "invalid tools/call params")
	}

	fn, ok := toolFuncs[params.Name]
	if !ok {
		return errResponse(req.ID, codeMethodNotFound, "unknown tool: "+params.Name)
	}

	result, err := fn(h, r.Context(), principal, params.Arguments)
	if err != nil {
		if _, ok := err.(*argError); ok {
			return errResponse(req.ID, codeInvalidParams, err.Error())
		}
		return errResponse(req.ID, codeApplication, err.Error())
	}

	wrapped, err := textResult(result)
	if err != nil {
		return errResponse(req.ID, codeApplication, err.Error())
	}
	return okResponse(req.ID, wrapped)
}

type argError struct{ msg string }

func (e *argError) Error() string { return e.msg }

func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return &argError{"missing arguments"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &argError{"malformed arguments: " + err.Error()}
	}
	return nil
}

type toolFunc func(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error)

var toolFuncs = map[string]toolFunc{
	"list_calendars":        toolListCalendars,
	"get_calendar":          toolGetCalendar,
	"create_calendar":       toolCreateCalendar,
	"delete_calendar":       toolDeleteCalendar,
	"create_event":          toolCreateEvent,
	"get_event":             toolGetEvent,
	"update_event":          toolUpdateEvent,
	"delete_event":          toolDeleteEvent,
	"query_events":          toolQueryEvents,
	"share_calendar":        toolShareCalendar,
	"unshare_calendar":      toolUnshareCalendar,
	"list_shared_calendars": toolListSharedCalendars,
}

func toolListCalendars(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	cals, err := h.Store.ListCalendarsVisibleTo(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return cals, nil
}

type calendarIDArgs struct {
	CalendarID string `json:"calendar_id"`
}

// resolveCalendar fetches a calendar and enforces the requested access
// level against the caller's owner-or-share standing (§3, §4.A).
func resolveCalendar(ctx context.Context, h *Handlers, p *auth.Principal, calendarID string, requireWrite, requireOwner bool) (*store.Calendar, error) {
	cal, err := h.Store.GetCalendar(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, errNotFound("calendar not found")
	}
	access, err := store.ResolveAccess(ctx, h.Store, p.UserID, cal)
	if err != nil {
		return nil, err
	}
	if requireOwner && !access.IsOwner {
		return nil, errForbidden("caller does not own this calendar")
	}
	if requireWrite && !access.CanWrite() {
		return nil, errForbidden("caller lacks write access to this calendar")
	}
	if !requireWrite && !requireOwner && !access.CanRead() {
		return nil, errForbidden("caller lacks read access to this calendar")
	}
	return cal, nil
}

type appErr struct{ msg string }

func (e *appErr) Error() string { return e.msg }

func errNotFound(msg string) error {
	return &appErr{msg}
}

func errForbidden(msg string) error {
	return &appErr{msg}
}

func toolGetCalendar(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a calendarIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	cal, err := resolveCalendar(ctx, h, p, a.CalendarID, false, false)
	if err != nil {
		return nil, err
	}
	return cal, nil
}

type createCalendarArgs struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Timezone    string `json:"timezone"`
}

func toolCreateCalendar(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a createCalendarArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Name == "" {
		return nil, &argError{"name is required"}
	}
	color := a.Color
	if color == "" {
		color = "#0E61B9"
	}
	timezone := a.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	cal, err := h.Store.CreateCalendar(ctx, store.Calendar{
		OwnerID:     p.UserID,
		Name:        a.Name,
		Description: a.Description,
		Color:       color,
		Timezone:    timezone,
	})
	if err != nil {
		return nil, err
	}
	return cal, nil
}

func toolDeleteCalendar(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a calendarIDArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, false, true); err != nil {
		return nil, err
	}
	if err := h.Store.DeleteCalendar(ctx, a.CalendarID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

type eventArgs struct {
	CalendarID  string `json:"calendar_id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// toolCreateEvent implements scenario 6 (§8): the resulting object's UID
// takes the form "{uuid}@caldav-server", synthesized by ical.Build.
func toolCreateEvent(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a eventArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Title == "" || a.Start == "" || a.End == "" {
		return nil, &argError{"title, start and end are required"}
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, true, false); err != nil {
		return nil, err
	}

	body, uid := ical.Build(ical.BuildOptions{
		Title:       a.Title,
		Start:       ical.NormalizeTime(a.Start),
		End:         ical.NormalizeTime(a.End),
		Description: a.Description,
		Location:    a.Location,
	})

	obj, _, err := h.Store.UpsertObject(ctx, a.CalendarID, uid, body, store.Fields{
		ComponentType: "VEVENT",
		DTStart:       ical.NormalizeTime(a.Start),
		DTEnd:         ical.NormalizeTime(a.End),
		Summary:       a.Title,
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

type eventRefArgs struct {
	CalendarID string `json:"calendar_id"`
	EventUID   string `json:"event_uid"`
}

func toolGetEvent(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a eventRefArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, false, false); err != nil {
		return nil, err
	}
	obj, err := h.Store.GetObjectByUID(ctx, a.CalendarID, a.EventUID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotFound("event not found")
	}
	return obj, nil
}

type updateEventArgs struct {
	CalendarID  string `json:"calendar_id"`
	EventUID    string `json:"event_uid"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// toolUpdateEvent is a full replacement: the body is rebuilt from scratch
// with the same UID, rotating the object's ETag on the upsert (§4.G).
func toolUpdateEvent(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a updateEventArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Title == "" || a.Start == "" || a.End == "" {
		return nil, &argError{"title, start and end are required"}
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, true, false); err != nil {
		return nil, err
	}
	existing, err := h.Store.GetObjectByUID(ctx, a.CalendarID, a.EventUID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errNotFound("event not found")
	}

	body, _ := ical.Build(ical.BuildOptions{
		UID:         a.EventUID,
		Title:       a.Title,
		Start:       ical.NormalizeTime(a.Start),
		End:         ical.NormalizeTime(a.End),
		Description: a.Description,
		Location:    a.Location,
	})

	obj, _, err := h.Store.UpsertObject(ctx, a.CalendarID, a.EventUID, body, store.Fields{
		ComponentType: existing.ComponentType,
		DTStart:       ical.NormalizeTime(a.Start),
		DTEnd:         ical.NormalizeTime(a.End),
		Summary:       a.Title,
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func toolDeleteEvent(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a eventRefArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, true, false); err != nil {
		return nil, err
	}
	if err := h.Store.DeleteObject(ctx, a.CalendarID, a.EventUID); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}

type queryEventsArgs struct {
	CalendarID string `json:"calendar_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Limit      int    `json:"limit"`
}

// toolQueryEvents implements the §4.A overlap semantics via
// ListObjectsInRange when a range is given, else a plain listing, with the
// default-50/cap-500 result limit applied after the store call.
func toolQueryEvents(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a queryEventsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, false, false); err != nil {
		return nil, err
	}

	limit := a.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	// ListObjectsInRange needs both bounds (an empty side is not a no-op
	// lower/upper bound at the store layer); a lone start or end falls
	// back to an unfiltered listing, same as a calendar-query REPORT with
	// no time-range element.
	var objs []*store.CalendarObject
	var err error
	if a.Start != "" && a.End != "" {
		objs, err = h.Store.ListObjectsInRange(ctx, a.CalendarID, ical.NormalizeTime(a.Start), ical.NormalizeTime(a.End))
	} else {
		objs, err = h.Store.ListObjects(ctx, a.CalendarID)
	}
	if err != nil {
		return nil, err
	}
	if len(objs) > limit {
		objs = objs[:limit]
	}
	return objs, nil
}

type shareCalendarArgs struct {
	CalendarID string `json:"calendar_id"`
	Username   string `json:"username"`
	Permission string `json:"permission"`
}

// toolShareCalendar validates ownership and that the target user exists
// before upserting the share (§4.G).
func toolShareCalendar(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a shareCalendarArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Permission != store.PermissionRead && a.Permission != store.PermissionReadWrite {
		return nil, &argError{`permission must be "read" or "read-write"`}
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, false, true); err != nil {
		return nil, err
	}
	target, err := h.Store.GetUserByUsername(ctx, a.Username)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errNotFound("user not found: " + a.Username)
	}
	share, err := h.Store.CreateShare(ctx, a.CalendarID, target.ID, a.Permission)
	if err != nil {
		return nil, err
	}
	return share, nil
}

type unshareCalendarArgs struct {
	CalendarID string `json:"calendar_id"`
	Username   string `json:"username"`
}

func toolUnshareCalendar(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	var a unshareCalendarArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := resolveCalendar(ctx, h, p, a.CalendarID, false, true); err != nil {
		return nil, err
	}
	target, err := h.Store.GetUserByUsername(ctx, a.Username)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errNotFound("user not found: " + a.Username)
	}
	if err := h.Store.DeleteShare(ctx, a.CalendarID, target.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"unshared": true}, nil
}

func toolListSharedCalendars(h *Handlers, ctx context.Context, p *auth.Principal, args json.RawMessage) (interface{}, error) {
	shares, err := h.Store.ListSharesReceived(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	cals := make([]*store.Calendar, 0, len(shares))
	for _, sh := range shares {
		cal, err := h.Store.GetCalendar(ctx, sh.CalendarID)
		if err != nil {
			return nil, err
		}
		if cal != nil {
			cals = append(cals, cal)
		}
	}
	return cals, nil
}
