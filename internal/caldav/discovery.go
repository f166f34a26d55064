package caldav

import (
	"net/http"
	"strings"

	"github.com/caldav-mcp/server/internal/auth"
	"github.com/caldav-mcp/server/internal/xmlprop"
)

// handleWellKnown implements §4.F level 1: no auth, non-OPTIONS redirects
// to the discovery root (OPTIONS is already handled before route is
// reached).
func (h *Handlers) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/caldav/", http.StatusMovedPermanently)
}

// handlePrincipalRedirect implements the /caldav/principals/{u}/ half of
// §4.F level 2: redirect to the calendar home. A bare /caldav/principals/
// (no username) falls back to discovery-root behaviour.
func (h *Handlers) handlePrincipalRedirect(w http.ResponseWriter, r *http.Request, rest string) {
	username := strings.Trim(rest, "/")
	if username == "" {
		h.handleDiscoveryRoot(w, r)
		return
	}
	http.Redirect(w, r, "/caldav/users/"+username+"/", http.StatusMovedPermanently)
}

// authenticateOptional attempts Strict Basic only when a header is
// present. A missing header is not an error — discovery roots never 401
// on that account (§4.F level 2, §7). A header that fails verification is
// an error the caller must turn into a real 401.
func (h *Handlers) authenticateOptional(r *http.Request) (*auth.Principal, bool, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, false, nil
	}
	p, err := h.Strict.Authenticate(r.Context(), header)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// handleDiscoveryRoot implements §4.F level 2 discovery roots: a PROPFIND
// whose current-user-principal reflects whether the caller authenticated,
// and which never emits 401 for a missing Authorization header.
func (h *Handlers) handleDiscoveryRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != "PROPFIND" {
		w.WriteHeader(http.StatusOK)
		return
	}

	principal, authenticated, err := h.authenticateOptional(r)
	if err != nil {
		h.unauthorized(w)
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

	principalHref := ""
	if authenticated {
		principalHref = "/caldav/principals/" + principal.Username + "/"
	}

	ms := xmlprop.NewMultiStatus()
	ms.Responses = append(ms.Responses, xmlprop.Response{
		Href:     r.URL.Path,
		PropStat: buildPropStats(pfReq, discoveryRootSetters(principalHref, authenticated)),
	})
	if err := xmlprop.ServeMultiStatus(w, ms); err != nil {
		h.Logger.Error().Err(err).Msg("failed to write discovery-root multistatus")
	}
}
