package xmlprop

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParsePropfindExplicitProps(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<D:propfind xmlns:D="DAV:">
  <D:prop>
    <D:displayname/>
    <D:getetag/>
  </D:prop>
</D:propfind>`)

	req, err := ParsePropfind(body)
	if err != nil {
		t.Fatalf("ParsePropfind: %v", err)
	}
	if req.AllProp || req.PropName {
		t.Fatalf("unexpected allprop/propname: %+v", req)
	}
	if !req.Has(NSDAV, "displayname") || !req.Has(NSDAV, "getetag") {
		t.Fatalf("expected displayname and getetag requested, got %+v", req.Names)
	}
	if req.Has(NSDAV, "resourcetype") {
		t.Fatal("resourcetype was not requested")
	}
}

func TestParsePropfindEmptyBodyIsAllProp(t *testing.T) {
	req, err := ParsePropfind(nil)
	if err != nil {
		t.Fatalf("ParsePropfind: %v", err)
	}
	if !req.AllProp {
		t.Fatal("expected AllProp for empty body")
	}
	if !req.Has(NSDAV, "anything") {
		t.Fatal("AllProp should report every name as requested")
	}
}

func TestParseReportCalendarQueryTimeRange(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><C:calendar-data/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20260101T000000Z" end="20260201T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`)

	report, err := ParseReport(body)
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if report.Kind != ReportCalendarQuery {
		t.Fatalf("expected ReportCalendarQuery, got %v", report.Kind)
	}
	if report.TimeRange == nil || report.TimeRange.Start != "20260101T000000Z" {
		t.Fatalf("unexpected time range: %+v", report.TimeRange)
	}
}

func TestParseReportCalendarMultiget(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<C:calendar-multiget xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><D:getetag/><C:calendar-data/></D:prop>
  <D:href>/caldav/users/bob/work/one.ics</D:href>
  <D:href>/caldav/users/bob/work/two.ics</D:href>
</C:calendar-multiget>`)

	report, err := ParseReport(body)
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if report.Kind != ReportCalendarMultiget {
		t.Fatalf("expected ReportCalendarMultiget, got %v", report.Kind)
	}
	if len(report.Hrefs) != 2 {
		t.Fatalf("expected 2 hrefs, got %+v", report.Hrefs)
	}
}

func TestServeMultiStatus(t *testing.T) {
	ms := NewMultiStatus()
	ms.Responses = append(ms.Responses, Response{
		Href: "/caldav/users/bob/work/",
		PropStat: []PropStat{{
			Prop:   Prop{DisplayName: StrPtr("Work"), ResourceType: CalendarResourceType()},
			Status: "HTTP/1.1 200 OK",
		}},
	})

	rec := httptest.NewRecorder()
	if err := ServeMultiStatus(rec, ms); err != nil {
		t.Fatalf("ServeMultiStatus: %v", err)
	}
	if rec.Code != 207 {
		t.Fatalf("expected 207, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<multistatus") || !strings.Contains(body, "Work") {
		t.Fatalf("unexpected body: %s", body)
	}
}
