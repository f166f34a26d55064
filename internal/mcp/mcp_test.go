package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/hash"
	"github.com/caldav-mcp/server/internal/store"
	sqlitestore "github.com/caldav-mcp/server/internal/store/sqlite"
)

func newTestHandlers(t *testing.T) (*Handlers, store.Store) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlitestore.New(dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, zerolog.Nop()), s
}

// createTestUserWithToken creates a user plus a fresh MCP token and returns
// the raw bearer secret for use in the Authorization header.
func createTestUserWithToken(t *testing.T, s store.Store, username string) string {
	t.Helper()
	ctx := context.Background()
	encoded, err := hash.Hash("irrelevant")
	if err != nil {
		t.Fatalf("hash.Hash: %v", err)
	}
	u, err := s.CreateUser(ctx, store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: encoded,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	raw := "mcp_" + username + "testsecret"
	tokenHash, err := hash.Hash(raw)
	if err != nil {
		t.Fatalf("hash.Hash: %v", err)
	}
	if _, err := s.CreateMCPToken(ctx, store.McpToken{
		UserID:    u.ID,
		TokenHash: tokenHash,
		Name:      "test token",
	}); err != nil {
		t.Fatalf("CreateMCPToken: %v", err)
	}
	return raw
}

func doRPC(h *Handlers, bearer, method string, params interface{}, id int) *httptest.ResponseRecorder {
	env := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		env["params"] = params
	}
	body, _ := json.Marshal(env)
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(string(body)))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	return resp
}

func TestMissingBearerRejected(t *testing.T) {
	h, _ := newTestHandlers(t)
	rec := doRPC(h, "", "ping", nil, 1)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"unauthorized"`) {
		t.Fatalf("body = %s, want unauthorized", rec.Body.String())
	}
}

func TestInitializeAndPing(t *testing.T) {
	h, s := newTestHandlers(t)
	token := createTestUserWithToken(t, s, "alice")

	rec := doRPC(h, token, "initialize", nil, 1)
	resp := decodeResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	b, _ := json.Marshal(resp.Result)
	if !strings.Contains(string(b), `"protocolVersion":"2025-03-26"`) {
		t.Fatalf("result = %s, missing protocolVersion", b)
	}

	rec = doRPC(h, token, "ping", nil, 2)
	resp = decodeResponse(t, rec)
	if resp.Error != nil {
		t.Fatalf("ping error: %+v", resp.Error)
	}
}

func TestNotificationsInitializedNoBody(t *testing.T) {
	h, s := newTestHandlers(t)
	token := createTestUserWithToken(t, s, "alice")
	rec := doRPC(h, token, "notifications/initialized", nil, 0)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty", rec.Body.String())
	}
}

func TestToolsListIncludesAllTwelve(t *testing.T) {
	h, s := newTestHandlers(t)
	token := createTestUserWithToken(t, s, "alice")
	rec := doRPC(h, token, "tools/list", nil, 1)
	resp := decodeResponse(t, rec)
	var result toolsListResult
	b, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("decode tools/list result: %v", err)
	}
	if len(result.Tools) != 12 {
		t.Fatalf("len(tools) = %d, want 12", len(result.Tools))
	}
}

func TestUnknownMethod(t *testing.T) {
	h, s := newTestHandlers(t)
	token := createTestUserWithToken(t, s, "alice")
	rec := doRPC(h, token, "bogus/method", nil, 1)
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", resp.Error, codeMethodNotFound)
	}
}

func extractToolResultText(t *testing.T, resp response) string {
	t.Helper()
	b, _ := json.Marshal(resp.Result)
	var tr toolResult
	if err := json.Unmarshal(b, &tr); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if len(tr.Content) != 1 {
		t.Fatalf("content = %v, want one entry", tr.Content)
	}
	return tr.Content[0].Text
}

func callTool(t *testing.T, h *Handlers, token, name string, args interface{}) response {
	t.Helper()
	rec := doRPC(h, token, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": args,
	}, 1)
	return decodeResponse(t, rec)
}

func TestCreateCalendarThenListCalendars(t *testing.T) {
	h, s := newTestHandlers(t)
	token := createTestUserWithToken(t, s, "alice")

	resp := callTool(t, h, token, "create_calendar", map[string]string{"name": "Work"})
	if resp.Error != nil {
		t.Fatalf("create_calendar error: %+v", resp.Error)
	}
	text := extractToolResultText(t, resp)
	var cal store.Calendar
	if err := json.Unmarshal([]byte(text), &cal); err != nil {
		t.Fatalf("decode calendar: %v", err)
	}
	if cal.ID == "" || cal.Name != "Work" {
		t.Fatalf("calendar = %+v", cal)
	}

	resp = callTool(t, h, token, "list_calendars", map[string]string{})
	if resp.Error != nil {
		t.Fatalf("list_calendars error: %+v", resp.Error)
	}
	listText := extractToolResultText(t, resp)
	var cals []*store.Calendar
	if err := json.Unmarshal([]byte(listText), &cals); err != nil {
		t.Fatalf("decode calendars: %v", err)
	}
	if len(cals) != 1 || cals[0].ID != cal.ID {
		t.Fatalf("cals = %+v", cals)
	}
}

// TestCreateEventUIDShape covers scenario 6 (§8): the result UID has the
// "{uuid}@caldav-server" shape and a subsequent get_event roundtrips it.
func TestCreateEventUIDShape(t *testing.T) {
	h, s := newTestHandlers(t)
	token := createTestUserWithToken(t, s, "alice")

	resp := callTool(t, h, token, "create_calendar", map[string]string{"name": "Work"})
	cal := mustDecodeCalendar(t, resp)

	resp = callTool(t, h, token, "create_event", map[string]string{
		"calendar_id": cal.ID,
		"title":       "Standup",
		"start":       "20260301T090000Z",
		"end":         "20260301T093000Z",
	})
	if resp.Error != nil {
		t.Fatalf("create_event error: %+v", resp.Error)
	}
	text := extractToolResultText(t, resp)
	var obj store.CalendarObject
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if !strings.HasSuffix(obj.UID, "@caldav-server") {
		t.Fatalf("uid = %q, want suffix @caldav-server", obj.UID)
	}

	resp = callTool(t, h, token, "get_event", map[string]string{
		"calendar_id": cal.ID,
		"event_uid":   obj.UID,
	})
	if resp.Error != nil {
		t.Fatalf("get_event error: %+v", resp.Error)
	}
	fetched := mustDecodeObject(t, resp)
	if fetched.ETag != obj.ETag {
		t.Fatalf("etag mismatch: %q != %q", fetched.ETag, obj.ETag)
	}
}

func TestNonOwnerCannotDeleteCalendar(t *testing.T) {
	h, s := newTestHandlers(t)
	ownerToken := createTestUserWithToken(t, s, "alice")
	otherToken := createTestUserWithToken(t, s, "bob")

	resp := callTool(t, h, ownerToken, "create_calendar", map[string]string{"name": "Work"})
	cal := mustDecodeCalendar(t, resp)

	resp = callTool(t, h, otherToken, "delete_calendar", map[string]string{"calendar_id": cal.ID})
	if resp.Error == nil || resp.Error.Code != codeApplication {
		t.Fatalf("error = %+v, want application error", resp.Error)
	}
}

func TestShareThenListSharedCalendars(t *testing.T) {
	h, s := newTestHandlers(t)
	ownerToken := createTestUserWithToken(t, s, "alice")
	otherToken := createTestUserWithToken(t, s, "bob")

	resp := callTool(t, h, ownerToken, "create_calendar", map[string]string{"name": "Work"})
	cal := mustDecodeCalendar(t, resp)

	resp = callTool(t, h, ownerToken, "share_calendar", map[string]string{
		"calendar_id": cal.ID,
		"username":    "bob",
		"permission":  "read",
	})
	if resp.Error != nil {
		t.Fatalf("share_calendar error: %+v", resp.Error)
	}

	resp = callTool(t, h, otherToken, "list_shared_calendars", map[string]string{})
	if resp.Error != nil {
		t.Fatalf("list_shared_calendars error: %+v", resp.Error)
	}
	text := extractToolResultText(t, resp)
	var cals []*store.Calendar
	if err := json.Unmarshal([]byte(text), &cals); err != nil {
		t.Fatalf("decode shared calendars: %v", err)
	}
	if len(cals) != 1 || cals[0].ID != cal.ID {
		t.Fatalf("shared cals = %+v", cals)
	}
}

func mustDecodeCalendar(t *testing.T, resp response) store.Calendar {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	text := extractToolResultText(t, resp)
	var cal store.Calendar
	if err := json.Unmarshal([]byte(text), &cal); err != nil {
		t.Fatalf("decode calendar: %v", err)
	}
	return cal
}

func mustDecodeObject(t *testing.T, resp response) store.CalendarObject {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	text := extractToolResultText(t, resp)
	var obj store.CalendarObject
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	return obj
}
