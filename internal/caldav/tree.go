package caldav

import (
	"net/http"

	"github.com/caldav-mcp/server/internal/auth"
	"github.com/caldav-mcp/server/internal/store"
	"github.com/caldav-mcp/server/internal/xmlprop"
)

// treeContext is the shared state both URL trees that expose a calendar
// home (/caldav/users/{u}/... and the authenticated half of
// /calendar/dav/{email}/user/...) resolve before dispatching on the
// remaining path segments. Response hrefs are built from HrefPrefix so
// they stay rooted at whichever URL the client actually used (§9
// "context-aware hrefs").
type treeContext struct {
	HrefPrefix   string
	Principal    *auth.Principal
	PathUsername string // set only for /caldav/users/{u}/; used by the MKCALENDAR identity check
	Tail         []string
}

// handleUsersTree implements §4.F level 4/5 for the /caldav/users/{u}/...
// subtree: Basic-or-path auth trusting the path username only when no
// Authorization header was sent.
func (h *Handlers) handleUsersTree(w http.ResponseWriter, r *http.Request, rest string) {
	segs := splitSegments(rest)
	if len(segs) == 0 {
		http.NotFound(w, r)
		return
	}
	username := segs[0]
	tail := segs[1:]

	principal, err := h.BasicOrPath.Authenticate(r.Context(), r.Header.Get("Authorization"), username)
	if err != nil {
		h.unauthorized(w)
		return
	}

	h.serveResourceTree(w, r, treeContext{
		HrefPrefix:   "/caldav/users/" + username + "/",
		Principal:    principal,
		PathUsername: username,
		Tail:         tail,
	})
}

func (h *Handlers) serveResourceTree(w http.ResponseWriter, r *http.Request, tc treeContext) {
	switch len(tc.Tail) {
	case 0:
		h.handleHome(w, r, tc)
	case 1:
		h.handleCollection(w, r, tc, tc.Tail[0])
	case 2:
		h.handleObject(w, r, tc, tc.Tail[0], tc.Tail[1])
	default:
		http.NotFound(w, r)
	}
}

// handleHome implements the calendar-home half of §4.F level 4: Depth 0
// returns home properties only, Depth 1 additionally enumerates every
// calendar visible to the caller (owned ∪ shared).
func (h *Handlers) handleHome(w http.ResponseWriter, r *http.Request, tc treeContext) {
	if r.Method != "PROPFIND" {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := readBody(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	pfReq, err := xmlprop.ParsePropfind(body)
	if err != nil {
		badRequest(w, err)
		return
	}

	ms := xmlprop.NewMultiStatus()
	ms.Responses = append(ms.Responses, xmlprop.Response{
		Href:     tc.HrefPrefix,
		PropStat: buildPropStats(pfReq, homeSetters(tc.Principal.Username, tc.HrefPrefix)),
	})

	if depthOf(r) == "1" {
		cals, err := h.Store.ListCalendarsVisibleTo(r.Context(), tc.Principal.UserID)
		if err != nil {
			h.serverError(w, err)
			return
		}
		for _, cal := range cals {
			ms.Responses = append(ms.Responses, xmlprop.Response{
				Href:     tc.HrefPrefix + cal.ID + "/",
				PropStat: buildPropStats(pfReq, collectionSetters(cal)),
			})
		}
	}

	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write calendar-home multistatus")
	}
}

// handleCollection implements §4.F level 5's collection half: PROPFIND,
// PROPPATCH, DELETE, REPORT against an existing calendar, plus the
// MKCALENDAR creation path when it doesn't exist yet.
func (h *Handlers) handleCollection(w http.ResponseWriter, r *http.Request, tc treeContext, calID string) {
	ctx := r.Context()
	cal, err := h.Store.GetCalendar(ctx, calID)
	if err != nil {
		h.serverError(w, err)
		return
	}

	if cal == nil {
		if r.Method == "MKCALENDAR" {
			h.handleMkcalendar(w, r, tc, calID)
			return
		}
		http.NotFound(w, r)
		return
	}

	if r.Method == "MKCALENDAR" {
		http.Error(w, "calendar already exists", http.StatusMethodNotAllowed)
		return
	}

	access, err := store.ResolveAccess(ctx, h.Store, tc.Principal.UserID, cal)
	if err != nil {
		h.serverError(w, err)
		return
	}

	prefix := tc.HrefPrefix + calID + "/"

	switch r.Method {
	case "PROPFIND":
		if !access.CanRead() {
			h.forbidden(w)
			return
		}
		h.handleCollectionPropfind(w, r, cal, prefix)
	case "PROPPATCH":
		if !access.CanWrite() {
			h.forbidden(w)
			return
		}
		h.handleProppatch(w, r, cal, prefix)
	case "REPORT":
		if !access.CanRead() {
			h.forbidden(w)
			return
		}
		h.handleReport(w, r, cal, prefix)
	case http.MethodDelete:
		if !access.CanDelete() {
			h.forbidden(w)
			return
		}
		if err := h.Store.DeleteCalendar(ctx, cal.ID); err != nil {
			h.serverError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) handleCollectionPropfind(w http.ResponseWriter, r *http.Request, cal *store.Calendar, prefix string) {
	body, err := readBody(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	pfReq, err := xmlprop.ParsePropfind(body)
	if err != nil {
		badRequest(w, err)
		return
	}

	ms := xmlprop.NewMultiStatus()
	ms.Responses = append(ms.Responses, xmlprop.Response{
		Href:     prefix,
		PropStat: buildPropStats(pfReq, collectionSetters(cal)),
	})

	if depthOf(r) == "1" {
		objs, err := h.Store.ListObjects(r.Context(), cal.ID)
		if err != nil {
			h.serverError(w, err)
			return
		}
		for _, obj := range objs {
			ms.Responses = append(ms.Responses, xmlprop.Response{
				Href:     prefix + obj.UID + ".ics",
				PropStat: buildPropStats(pfReq, objectSetters(obj)),
			})
		}
	}

	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write collection multistatus")
	}
}

func (h *Handlers) handleProppatch(w http.ResponseWriter, r *http.Request, cal *store.Calendar, prefix string) {
	body, err := readBody(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	update, err := xmlprop.ParsePropertyUpdate(body)
	if err != nil {
		badRequest(w, err)
		return
	}

	// <D:remove> is accepted but a no-op: none of the three mutable
	// properties have a meaningful "unset" state (§4.D).
	updated, err := h.Store.UpdateCalendarProperties(r.Context(), cal.ID, update.SetDisplayName, update.SetDescription, update.SetColor, nil)
	if err != nil {
		h.serverError(w, err)
		return
	}

	var prop xmlprop.Prop
	if update.SetDisplayName != nil {
		prop.DisplayName = &updated.Name
	}
	if update.SetDescription != nil {
		prop.CalendarDescription = &updated.Description
	}
	if update.SetColor != nil {
		prop.CalendarColor = &updated.Color
	}

	ms := xmlprop.NewMultiStatus()
	ms.Responses = append(ms.Responses, xmlprop.Response{
		Href:     prefix,
		PropStat: []xmlprop.PropStat{{Prop: prop, Status: "HTTP/1.1 200 OK"}},
	})
	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write proppatch multistatus")
	}
}

func (h *Handlers) handleMkcalendar(w http.ResponseWriter, r *http.Request, tc treeContext, calID string) {
	if tc.PathUsername != "" && tc.Principal.Username != tc.PathUsername {
		h.forbidden(w)
		return
	}

	body, err := readBody(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	update, err := xmlprop.ParseMkcalendar(body)
	if err != nil {
		badRequest(w, err)
		return
	}

	name := calID
	if update.SetDisplayName != nil {
		name = *update.SetDisplayName
	}
	color := "#0E61B9"
	if update.SetColor != nil {
		color = *update.SetColor
	}
	description := ""
	if update.SetDescription != nil {
		description = *update.SetDescription
	}

	_, err = h.Store.CreateCalendarWithID(r.Context(), calID, store.Calendar{
		OwnerID:     tc.Principal.UserID,
		Name:        name,
		Description: description,
		Color:       color,
		Timezone:    "UTC",
	})
	if err != nil {
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
