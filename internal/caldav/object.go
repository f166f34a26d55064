package caldav

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/ical"
	"github.com/caldav-mcp/server/internal/store"
)

// handleObject implements §4.F level 5's object half: GET/PUT/DELETE on a
// single calendar object, gated by the same ownership check as the
// enclosing collection.
func (h *Handlers) handleObject(w http.ResponseWriter, r *http.Request, tc treeContext, calID, filename string) {
	ctx := r.Context()
	cal, err := h.Store.GetCalendar(ctx, calID)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if cal == nil {
		http.NotFound(w, r)
		return
	}

	access, err := store.ResolveAccess(ctx, h.Store, tc.Principal.UserID, cal)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if !access.CanRead() {
		h.forbidden(w)
		return
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".ics") {
		http.Error(w, "bad object name", http.StatusBadRequest)
		return
	}
	pathUID := strings.TrimSuffix(filename, filepath.Ext(filename))

	switch r.Method {
	case http.MethodGet:
		h.handleObjectGet(w, r, cal, pathUID)
	case http.MethodPut:
		if !access.CanWrite() {
			h.forbidden(w)
			return
		}
		h.handleObjectPut(w, r, cal, pathUID)
	case http.MethodDelete:
		if !access.CanWrite() {
			h.forbidden(w)
			return
		}
		h.handleObjectDelete(w, r, cal, pathUID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) handleObjectGet(w http.ResponseWriter, r *http.Request, cal *store.Calendar, uid string) {
	obj, err := h.Store.GetObjectByUID(r.Context(), cal.ID, uid)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if obj == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", quoteETag(obj.ETag))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, obj.ICalData)
}

// handleObjectPut implements §4.F's PUT contract: size limit, UTF-8
// validation, If-Match precondition, then an atomic upsert. The stored
// UID is the body's UID when the parser found one, else the path's
// (§4.B/§4.F).
func (h *Handlers) handleObjectPut(w http.ResponseWriter, r *http.Request, cal *store.Calendar, pathUID string) {
	limited := io.LimitReader(r.Body, h.Config.MaxICSBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if int64(len(data)) > h.Config.MaxICSBytes {
		http.Error(w, "request body too large", http.StatusBadRequest)
		return
	}
	if !utf8.Valid(data) {
		http.Error(w, "body must be valid utf-8", http.StatusBadRequest)
		return
	}

	fields, _ := ical.Extract(data)
	uid := fields.UID
	if uid == "" {
		uid = pathUID
	}
	componentType := fields.Component
	if componentType == "" {
		componentType = "VEVENT"
	}

	ctx := r.Context()
	existing, err := h.Store.GetObjectByUID(ctx, cal.ID, uid)
	if err != nil {
		h.serverError(w, err)
		return
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		if existing == nil {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
		if ifMatch != "*" && unquoteETag(ifMatch) != existing.ETag {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
	}

	obj, isNew, err := h.Store.UpsertObject(ctx, cal.ID, uid, string(data), store.Fields{
		ComponentType: componentType,
		DTStart:       ical.NormalizeTime(fields.DTStart),
		DTEnd:         ical.NormalizeTime(fields.DTEnd),
		Summary:       fields.Summary,
	})
	if err != nil {
		h.serverError(w, err)
		return
	}

	w.Header().Set("ETag", quoteETag(obj.ETag))
	if isNew {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handlers) handleObjectDelete(w http.ResponseWriter, r *http.Request, cal *store.Calendar, uid string) {
	err := h.Store.DeleteObject(r.Context(), cal.ID, uid)
	if apperr.Is(err, apperr.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
