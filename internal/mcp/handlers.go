package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/auth"
	"github.com/caldav-mcp/server/internal/store"
)

const serverName = "caldav-mcp-server"
const serverVersion = "0.1.0"
const protocolVersion = "2025-03-26"

// Handlers is the MCP transport: Bearer auth, JSON-RPC envelope parsing,
// and dispatch into the twelve tools, all against the same Store the
// CalDAV side uses.
type Handlers struct {
	Store  store.Store
	Bearer *auth.Bearer
	Logger zerolog.Logger
}

func New(s store.Store, logger zerolog.Logger) *Handlers {
	return &Handlers{
		Store:  s,
		Bearer: &auth.Bearer{Store: s},
		Logger: logger,
	}
}

func (h *Handlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK

	principal, err := h.Bearer.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		status = http.StatusUnauthorized
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		h.logRequest(r, status, start)
		return
	}

	switch r.Method {
	case http.MethodPost:
		status = h.handlePost(w, r, principal)
	case http.MethodGet:
		// A server-streamed response channel. This implementation has no
		// asynchronous push events to deliver, so it keeps the connection
		// open only long enough to acknowledge it (§4.G, §5 "idle" streams).
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		w.WriteHeader(http.StatusOK)
	default:
		status = http.StatusMethodNotAllowed
		http.Error(w, "method not allowed", status)
	}

	h.logRequest(r, status, start)
}

func (h *Handlers) logRequest(r *http.Request, status int, start time.Time) {
	h.Logger.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Float64("duration_ms", float64(time.Since(start).Microseconds())/1000.0).
		Msg("mcp request")
}

func (h *Handlers) handlePost(w http.ResponseWriter, r *http.Request, principal *auth.Principal) int {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeResponse(w, errResponse(nil, codeParseError, "failed to read request body"))
		return http.StatusOK
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeResponse(w, errResponse(nil, codeParseError, "invalid JSON"))
		return http.StatusOK
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.writeResponse(w, errResponse(req.ID, codeInvalidRequest, "not a valid JSON-RPC 2.0 request"))
		return http.StatusOK
	}

	resp, hasResp := h.dispatch(r, req, principal)
	if !hasResp {
		// Notification: no id, no response body (§4.G
		// notifications/initialized -> 202 Accepted, no body).
		w.WriteHeader(http.StatusAccepted)
		return http.StatusAccepted
	}
	h.writeResponse(w, resp)
	return http.StatusOK
}

func (h *Handlers) writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error().Err(err).Msg("failed to encode mcp response")
	}
}

func (h *Handlers) dispatch(r *http.Request, req request, principal *auth.Principal) (response, bool) {
	if req.Method == "notifications/initialized" {
		return response{}, false
	}

	switch req.Method {
	case "initialize":
		return okResponse(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    capabilities{Tools: toolsCapability{ListChanged: false}},
			ServerInfo:      serverInfo{Name: serverName, Version: serverVersion},
		}), true
	case "ping":
		return okResponse(req.ID, struct{}{}), true
	case "tools/list":
		return okResponse(req.ID, toolsListResult{Tools: toolSchemas}), true
	case "tools/call":
		return h.handleToolsCall(r, req, principal), true
	default:
		return errResponse(req.ID, codeMethodNotFound, "unknown method: "+req.Method), true
	}
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    capabilities `json:"capabilities"`
	ServerInfo      serverInfo   `json:"serverInfo"`
}

type capabilities struct {
	Tools toolsCapability `json:"tools"`
}

type toolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolsListResult struct {
	Tools []toolSchema `json:"tools"`
}
