package caldav

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caldav-mcp/server/internal/config"
	"github.com/caldav-mcp/server/internal/hash"
	"github.com/caldav-mcp/server/internal/store"
	sqlitestore "github.com/caldav-mcp/server/internal/store/sqlite"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlitestore.New(dsn, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := &config.Config{MaxICSBytes: 256 * 1024}
	return New(s, cfg, zerolog.Nop())
}

func createTestUser(t *testing.T, h *Handlers, username, password string) {
	t.Helper()
	encoded, err := hash.Hash(password)
	if err != nil {
		t.Fatalf("hash.Hash: %v", err)
	}
	_, err = h.Store.CreateUser(context.Background(), store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: encoded,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func basicAuthHeader(username, password string) string {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(username, password)
	return req.Header.Get("Authorization")
}

func doRequest(h *Handlers, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func mkcalendar(t *testing.T, h *Handlers, path, authHeader string) {
	t.Helper()
	rec := doRequest(h, "MKCALENDAR", path, "", map[string]string{"Authorization": authHeader})
	if rec.Code != http.StatusCreated {
		t.Fatalf("MKCALENDAR %s: expected 201, got %d: %s", path, rec.Code, rec.Body.String())
	}
}

const evt1Body = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:evt1\r\nDTSTART:20260301T090000Z\r\nDTEND:20260301T100000Z\r\nSUMMARY:Hi\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func TestCreateThenFetch(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")
	authz := basicAuthHeader("alice", "hunter2")
	mkcalendar(t, h, "/caldav/users/alice/calA/", authz)

	put := doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt1.ics", evt1Body, map[string]string{"Authorization": authz})
	if put.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", put.Code, put.Body.String())
	}
	etag := put.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on PUT response")
	}

	get := doRequest(h, http.MethodGet, "/caldav/users/alice/calA/evt1.ics", "", map[string]string{"Authorization": authz})
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}
	if get.Header().Get("Content-Type") != "text/calendar; charset=utf-8" {
		t.Fatalf("unexpected content-type: %s", get.Header().Get("Content-Type"))
	}
	if get.Body.String() != evt1Body {
		t.Fatalf("body mismatch:\ngot:  %q\nwant: %q", get.Body.String(), evt1Body)
	}
	if get.Header().Get("ETag") != etag {
		t.Fatalf("ETag mismatch: got %s want %s", get.Header().Get("ETag"), etag)
	}
}

func TestConditionalUpdateCollision(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")
	authz := basicAuthHeader("alice", "hunter2")
	mkcalendar(t, h, "/caldav/users/alice/calA/", authz)

	put := doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt1.ics", evt1Body, map[string]string{"Authorization": authz})
	firstETag := put.Header().Get("ETag")

	collision := doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt1.ics", evt1Body, map[string]string{
		"Authorization": authz,
		"If-Match":      `"deadbeef"`,
	})
	if collision.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", collision.Code)
	}

	ok := doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt1.ics", evt1Body, map[string]string{
		"Authorization": authz,
		"If-Match":      firstETag,
	})
	if ok.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", ok.Code, ok.Body.String())
	}
	if ok.Header().Get("ETag") == firstETag {
		t.Fatal("expected a new ETag after update")
	}
}

func TestDeltaSync(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")
	authz := basicAuthHeader("alice", "hunter2")
	mkcalendar(t, h, "/caldav/users/alice/calA/", authz)
	doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt1.ics", evt1Body, map[string]string{"Authorization": authz})

	initialReport := `<?xml version="1.0"?><D:sync-collection xmlns:D="DAV:"><D:sync-token/><D:prop><D:getetag/></D:prop></D:sync-collection>`
	initial := doRequest(h, "REPORT", "/caldav/users/alice/calA/", initialReport, map[string]string{"Authorization": authz})
	if initial.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", initial.Code, initial.Body.String())
	}
	if !strings.Contains(initial.Body.String(), "evt1.ics") {
		t.Fatalf("expected evt1 in initial sync, got %s", initial.Body.String())
	}
	token1 := extractSyncToken(t, initial.Body.String())

	del := doRequest(h, http.MethodDelete, "/caldav/users/alice/calA/evt1.ics", "", map[string]string{"Authorization": authz})
	if del.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", del.Code)
	}

	deltaReport := `<?xml version="1.0"?><D:sync-collection xmlns:D="DAV:"><D:sync-token>` + token1 + `</D:sync-token><D:prop><D:getetag/></D:prop></D:sync-collection>`
	delta := doRequest(h, "REPORT", "/caldav/users/alice/calA/", deltaReport, map[string]string{"Authorization": authz})
	if delta.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", delta.Code, delta.Body.String())
	}
	if !strings.Contains(delta.Body.String(), "404 Not Found") {
		t.Fatalf("expected a tombstone response, got %s", delta.Body.String())
	}
	token2 := extractSyncToken(t, delta.Body.String())
	if token2 == token1 {
		t.Fatal("expected sync token to change after delete")
	}
}

func TestTimeRangeFilter(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")
	authz := basicAuthHeader("alice", "hunter2")
	mkcalendar(t, h, "/caldav/users/alice/calA/", authz)

	doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt1.ics", evt1Body, map[string]string{"Authorization": authz})
	evt2 := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nUID:evt2\r\nDTSTART:20260401T090000Z\r\nDTEND:20260401T100000Z\r\nSUMMARY:Later\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	doRequest(h, http.MethodPut, "/caldav/users/alice/calA/evt2.ics", evt2, map[string]string{"Authorization": authz})

	query := `<?xml version="1.0"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><C:calendar-data/></D:prop>
  <C:filter><C:comp-filter name="VCALENDAR"><C:comp-filter name="VEVENT">
    <C:time-range start="20260301T000000Z" end="20260401T000000Z"/>
  </C:comp-filter></C:comp-filter></C:filter>
</C:calendar-query>`
	rec := doRequest(h, "REPORT", "/caldav/users/alice/calA/", query, map[string]string{"Authorization": authz})
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "evt1.ics") {
		t.Fatal("expected evt1 in range result")
	}
	if strings.Contains(rec.Body.String(), "evt2.ics") {
		t.Fatal("evt2 should be excluded by the time-range filter")
	}
}

func TestMkcalendarConflict(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")
	authz := basicAuthHeader("alice", "hunter2")
	mkcalendar(t, h, "/caldav/users/alice/calA/", authz)

	rec := doRequest(h, "MKCALENDAR", "/caldav/users/alice/calA/", "", map[string]string{"Authorization": authz})
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 on existing calendar, got %d", rec.Code)
	}
}

func TestDiscoveryRootNeverUnauthorized(t *testing.T) {
	h := newTestHandlers(t)
	rec := doRequest(h, "PROPFIND", "/caldav/", "", nil)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unauthenticated") {
		t.Fatalf("expected unauthenticated current-user-principal, got %s", rec.Body.String())
	}
}

func TestAppleAntiEnumeration(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")

	existing := doRequest(h, "PROPFIND", "/calendar/dav/alice@example.com/user/", "", nil)
	missing := doRequest(h, "PROPFIND", "/calendar/dav/nobody@nowhere.example/user/", "", nil)

	bodyExisting := strings.ReplaceAll(existing.Body.String(), "alice@example.com", "{email}")
	bodyMissing := strings.ReplaceAll(missing.Body.String(), "nobody@nowhere.example", "{email}")
	if bodyExisting != bodyMissing {
		t.Fatalf("expected byte-identical bodies modulo the requested email:\n%s\nvs\n%s", bodyExisting, bodyMissing)
	}
}

func TestOwnershipDenied(t *testing.T) {
	h := newTestHandlers(t)
	createTestUser(t, h, "alice", "hunter2")
	createTestUser(t, h, "bob", "swordfish")
	aliceAuth := basicAuthHeader("alice", "hunter2")
	bobAuth := basicAuthHeader("bob", "swordfish")
	mkcalendar(t, h, "/caldav/users/alice/calA/", aliceAuth)

	rec := doRequest(h, "PROPFIND", "/caldav/users/alice/calA/", "", map[string]string{"Authorization": bobAuth})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner non-shared access, got %d", rec.Code)
	}
}

func extractSyncToken(t *testing.T, body string) string {
	t.Helper()
	start := strings.Index(body, "<sync-token")
	if start < 0 {
		t.Fatalf("no sync-token in body: %s", body)
	}
	tagEnd := strings.IndexByte(body[start:], '>')
	if tagEnd < 0 {
		t.Fatalf("unterminated sync-token tag in body: %s", body)
	}
	content := body[start+tagEnd+1:]
	end := strings.Index(content, "</sync-token>")
	if end < 0 {
		t.Fatalf("unterminated sync-token in body: %s", body)
	}
	return content[:end]
}
