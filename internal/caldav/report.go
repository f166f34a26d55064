package caldav

import (
	"context"
	"net/http"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/store"
	"github.com/caldav-mcp/server/internal/xmlprop"
)

// handleReport dispatches a REPORT body on an existing, access-checked
// calendar collection (§4.F REPORT contract).
func (h *Handlers) handleReport(w http.ResponseWriter, r *http.Request, cal *store.Calendar, prefix string) {
	body, err := readBody(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	parsed, err := xmlprop.ParseReport(body)
	if err != nil {
		badRequest(w, err)
		return
	}

	switch parsed.Kind {
	case xmlprop.ReportCalendarMultiget:
		h.reportMultiget(w, r, cal, prefix, parsed)
	case xmlprop.ReportCalendarQuery:
		h.reportQuery(w, r, cal, prefix, parsed)
	case xmlprop.ReportSyncCollection:
		h.reportSync(w, r, cal, prefix, parsed)
	default:
		http.Error(w, "unsupported report type", http.StatusBadRequest)
	}
}

func (h *Handlers) reportMultiget(w http.ResponseWriter, r *http.Request, cal *store.Calendar, prefix string, parsed xmlprop.ParsedReport) {
	pfReq := xmlprop.PropfindRequest{Names: parsed.Names}
	ms := xmlprop.NewMultiStatus()

	for _, href := range parsed.Hrefs {
		uid := uidFromHref(href)
		obj, err := h.Store.GetObjectByUID(r.Context(), cal.ID, uid)
		if err != nil {
			h.serverError(w, err)
			return
		}
		if obj == nil {
			ms.Responses = append(ms.Responses, xmlprop.Response{Href: href, Status: "HTTP/1.1 404 Not Found"})
			continue
		}
		ms.Responses = append(ms.Responses, xmlprop.Response{
			Href:     prefix + obj.UID + ".ics",
			PropStat: buildPropStats(pfReq, objectSetters(obj)),
		})
	}

	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write calendar-multiget multistatus")
	}
}

func (h *Handlers) reportQuery(w http.ResponseWriter, r *http.Request, cal *store.Calendar, prefix string, parsed xmlprop.ParsedReport) {
	pfReq := xmlprop.PropfindRequest{Names: parsed.Names}

	var objs []*store.CalendarObject
	var err error
	if parsed.TimeRange != nil {
		objs, err = h.Store.ListObjectsInRange(r.Context(), cal.ID, parsed.TimeRange.Start, parsed.TimeRange.End)
	} else {
		objs, err = h.Store.ListObjects(r.Context(), cal.ID)
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	ms := xmlprop.NewMultiStatus()
	for _, obj := range objs {
		ms.Responses = append(ms.Responses, xmlprop.Response{
			Href:     prefix + obj.UID + ".ics",
			PropStat: buildPropStats(pfReq, objectSetters(obj)),
		})
	}
	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write calendar-query multistatus")
	}
}

// reportFullSync emits every current object plus the calendar's current
// sync token, used both for an empty client token and for one the store no
// longer recognizes (§4.A: either case is a full initial sync).
func (h *Handlers) reportFullSync(w http.ResponseWriter, ctx context.Context, cal *store.Calendar, prefix string, pfReq xmlprop.PropfindRequest, ms *xmlprop.MultiStatus) {
	objs, err := h.Store.ListObjects(ctx, cal.ID)
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
	ms.SyncToken = cal.SyncToken
	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write full sync-collection multistatus")
	}
}

// reportSync implements §4.F's sync-collection contract: an empty client
// token means an initial full sync; otherwise the change log since that
// token is replayed, with deleted-since entries emitted as tombstones
// (including objects the change log calls created or modified but that
// have since been deleted).
func (h *Handlers) reportSync(w http.ResponseWriter, r *http.Request, cal *store.Calendar, prefix string, parsed xmlprop.ParsedReport) {
	pfReq := xmlprop.PropfindRequest{Names: parsed.Names}
	ctx := r.Context()
	ms := xmlprop.NewMultiStatus()

	if parsed.SyncToken == "" {
		h.reportFullSync(w, ctx, cal, prefix, pfReq, ms)
		return
	}

	changes, err := h.Store.GetSyncChangesSince(ctx, cal.ID, parsed.SyncToken)
	if apperr.Is(err, apperr.ErrPreconditionFailed) {
		// An unknown or stale token gets the same treatment as an empty
		// one (§4.A): a full resync, not a 403.
		h.reportFullSync(w, ctx, cal, prefix, pfReq, ms)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}

	for _, change := range changes {
		if change.ChangeType == store.ChangeDeleted {
			ms.Responses = append(ms.Responses, xmlprop.Response{
				Href:   prefix + change.ObjectUID + ".ics",
				Status: "HTTP/1.1 404 Not Found",
			})
			continue
		}
		obj, err := h.Store.GetObjectByUID(ctx, cal.ID, change.ObjectUID)
		if err != nil {
			h.serverError(w, err)
			return
		}
		if obj == nil {
			ms.Responses = append(ms.Responses, xmlprop.Response{
				Href:   prefix + change.ObjectUID + ".ics",
				Status: "HTTP/1.1 404 Not Found",
			})
			continue
		}
		ms.Responses = append(ms.Responses, xmlprop.Response{
			Href:     prefix + obj.UID + ".ics",
			PropStat: buildPropStats(pfReq, objectSetters(obj)),
		})
	}

	fresh, err := h.Store.GetCalendar(ctx, cal.ID)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if fresh != nil {
		ms.SyncToken = fresh.SyncToken
	} else {
		ms.SyncToken = cal.SyncToken
	}

	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write delta sync-collection multistatus")
	}
}
