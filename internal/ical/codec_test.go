package ical

import (
	"strings"
	"testing"
)

const sampleEvent = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt1\r\n" +
	"DTSTART:20260301T090000Z\r\n" +
	"DTEND:20260301T100000Z\r\n" +
	"SUMMARY:Hi\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestExtractBasicEvent(t *testing.T) {
	fields, ok := Extract([]byte(sampleEvent))
	if !ok {
		t.Fatal("expected ok=true")
	}
	if fields.UID != "evt1" || fields.Component != "VEVENT" {
		t.Fatalf("got %+v", fields)
	}
	if fields.DTStart != "20260301T090000Z" || fields.DTEnd != "20260301T100000Z" {
		t.Fatalf("got %+v", fields)
	}
	if fields.Summary != "Hi" {
		t.Fatalf("got %+v", fields)
	}
}

func TestExtractVTodoUsesDue(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nBEGIN:VTODO\r\nUID:t1\r\nDUE:20260301T100000Z\r\nSUMMARY:Task\r\nEND:VTODO\r\nEND:VCALENDAR\r\n"
	fields, ok := Extract([]byte(body))
	if !ok {
		t.Fatal("expected ok=true")
	}
	if fields.Component != "VTODO" || fields.DTEnd != "20260301T100000Z" {
		t.Fatalf("got %+v", fields)
	}
}

func TestExtractNoComponent(t *testing.T) {
	_, ok := Extract([]byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"))
	if ok {
		t.Fatal("expected ok=false when no VEVENT/VTODO present")
	}
}

func TestExtractMissingUID(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nDTSTART:20260301T090000Z\r\nDTEND:20260301T100000Z\r\nSUMMARY:Hi\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	fields, ok := Extract([]byte(body))
	if !ok {
		t.Fatal("expected ok=true")
	}
	if fields.UID != "" {
		t.Fatalf("expected empty UID, got %q", fields.UID)
	}
}

// foldAt75 folds each logical line at column 75 using "CRLF + space"
// continuations, mirroring RFC 5545 §3.1 so the round-trip property in
// spec.md §8 can be exercised without a real RFC-5545 encoder.
func foldAt75(unfolded string) string {
	lines := strings.Split(strings.ReplaceAll(unfolded, "\r\n", "\n"), "\n")
	var out strings.Builder
	for i, line := range lines {
		if i > 0 {
			out.WriteString("\r\n")
		}
		for len(line) > 75 {
			out.WriteString(line[:75])
			out.WriteString("\r\n ")
			line = line[75:]
		}
		out.WriteString(line)
	}
	return out.String()
}

func TestLineUnfoldingRoundTrip(t *testing.T) {
	body := "BEGIN:VCALENDAR\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-with-a-very-long-identifier-that-will-need-folding-across-lines-1234\r\n" +
		"DTSTART:20260301T090000Z\r\n" +
		"DTEND:20260301T100000Z\r\n" +
		"SUMMARY:A summary text that is also long enough to require folding at col 75\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	want, ok := Extract([]byte(body))
	if !ok {
		t.Fatal("expected ok=true")
	}

	folded := foldAt75(body)
	got, ok := Extract([]byte(folded))
	if !ok {
		t.Fatal("expected ok=true for folded body")
	}

	if got != want {
		t.Fatalf("folded extraction mismatch: got %+v want %+v", got, want)
	}
}

func TestBuildSynthesizesUID(t *testing.T) {
	body, uid := Build(BuildOptions{Title: "Standup", Start: "20260301T090000Z", End: "20260301T093000Z"})
	if !strings.HasSuffix(uid, "@caldav-server") {
		t.Fatalf("expected synthesized uid suffix, got %q", uid)
	}
	if !strings.Contains(body, "UID:"+uid) {
		t.Fatalf("body missing UID line: %s", body)
	}
	if !strings.Contains(body, "SUMMARY:Standup") {
		t.Fatalf("body missing summary: %s", body)
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := map[string]string{
		"20260301T090000Z":    "20260301T090000Z",
		"2026-03-01T09:00:00Z": "20260301T090000Z",
	}
	for in, want := range cases {
		if got := NormalizeTime(in); got != want {
			t.Fatalf("NormalizeTime(%q) = %q, want %q", in, got, want)
		}
	}
}
