package caldav

import (
	"net/http"

	"github.com/caldav-mcp/server/internal/xmlprop"
)

// handleAppleDiscovery implements §4.F level 3: dataaccessd's email-based
// account discovery. A present Authorization header must succeed (strict
// Basic); its absence routes to the fixed anti-enumeration response.
func (h *Handlers) handleAppleDiscovery(w http.ResponseWriter, r *http.Request, rest string) {
	segs := splitSegments(rest)
	if len(segs) < 2 || segs[1] != "user" {
		http.NotFound(w, r)
		return
	}
	email := segs[0]
	tail := segs[2:]

	header := r.Header.Get("Authorization")
	if header == "" {
		h.handleAppleAnonymous(w, r, email)
		return
	}

	principal, err := h.Strict.Authenticate(r.Context(), header)
	if err != nil {
		h.unauthorized(w)
		return
	}
	h.serveResourceTree(w, r, treeContext{
		HrefPrefix: "/calendar/dav/" + email + "/user/",
		Principal:  principal,
		Tail:       tail,
	})
}

// handleAppleAnonymous never consults the store: the response must be
// byte-identical whether or not email names a real user (§4.F level 3,
// §8 anti-enumeration property), and the simplest way to guarantee that is
// to never let the lookup influence the response at all.
func (h *Handlers) handleAppleAnonymous(w http.ResponseWriter, r *http.Request, email string) {
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
		Href:     "/calendar/dav/" + email + "/user/",
		PropStat: buildPropStats(pfReq, fixedAppleAccountSetters()),
	})
	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write apple-discovery multistatus")
	}
}
