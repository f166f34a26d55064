// Package ical implements the minimal iCalendar codec described in the
// spec: a lazy single-pass field extractor (no semantic date validation,
// bodies kept verbatim) and a small VCALENDAR/VEVENT builder. This is
// hand-rolled rather than built on github.com/emersion/go-ical — that
// library decodes and re-encodes the whole document, which would
// canonicalize (and thus mutate) bodies the spec requires to be stored
// byte-for-byte. See DESIGN.md.
package ical

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Fields holds the indexed properties extracted from a calendar body.
type Fields struct {
	UID       string
	Component string // VEVENT, VTODO, ...
	DTStart   string
	DTEnd     string // DTEND for VEVENT, DUE for VTODO
	Summary   string
}

// Unfold performs RFC 5545 line unfolding: a physical line beginning with a
// single space or tab is a continuation of the previous logical line, with
// the leading whitespace character removed. Accepts both CRLF and bare-LF
// input.
func Unfold(body []byte) []string {
	normalized := strings.ReplaceAll(string(body), "\r\n", "\n")
	raw := strings.Split(normalized, "\n")

	var logical []string
	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if len(logical) > 0 {
				logical[len(logical)-1] += line[1:]
				continue
			}
		}
		logical = append(logical, line)
	}
	return logical
}

// splitProp splits a logical "NAME;PARAM=x:VALUE" line into its bare name
// (parameters discarded) and value. Returns ok=false for lines with no
// unquoted colon (section delimiters, blank lines).
func splitProp(line string) (name, value string, ok bool) {
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				nameAndParams := line[:i]
				if semi := strings.IndexByte(nameAndParams, ';'); semi >= 0 {
					nameAndParams = nameAndParams[:semi]
				}
				return strings.ToUpper(strings.TrimSpace(nameAndParams)), line[i+1:], true
			}
		}
	}
	return "", "", false
}

// Extract scans the first VEVENT or VTODO component in body and returns its
// indexed fields. If the body contains neither, ok is false. If UID is
// absent, Fields.UID is empty and the caller substitutes a URL-derived UID.
func Extract(body []byte) (fields Fields, ok bool) {
	lines := Unfold(body)

	inComponent := false
	var compName string
	depth := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		if !inComponent {
			if strings.HasPrefix(upper, "BEGIN:VEVENT") {
				inComponent, compName = true, "VEVENT"
				continue
			}
			if strings.HasPrefix(upper, "BEGIN:VTODO") {
				inComponent, compName = true, "VTODO"
				continue
			}
			continue
		}

		// Nested components (VALARM) inside the first VEVENT/VTODO are
		// skipped for field purposes but don't end the outer scan.
		if strings.HasPrefix(upper, "END:") {
			if depth > 0 {
				depth--
				continue
			}
			break
		}
		if strings.HasPrefix(upper, "BEGIN:") {
			depth++
			continue
		}
		if depth > 0 {
			continue
		}

		name, value, has := splitProp(trimmed)
		if !has {
			continue
		}
		switch name {
		case "UID":
			if fields.UID == "" {
				fields.UID = value
			}
		case "DTSTART":
			if fields.DTStart == "" {
				fields.DTStart = value
			}
		case "DTEND":
			if fields.DTEnd == "" {
				fields.DTEnd = value
			}
		case "DUE":
			if fields.DTEnd == "" {
				fields.DTEnd = value
			}
		case "SUMMARY":
			if fields.Summary == "" {
				fields.Summary = value
			}
		}
	}

	if !inComponent && compName == "" {
		return Fields{}, false
	}
	fields.Component = compName
	return fields, true
}

// BuildOptions are the structured inputs for Build.
type BuildOptions struct {
	UID         string // if empty, a fresh one is synthesized
	Title       string
	Start       string // iCal basic or already-formatted value
	End         string
	Description string
	Location    string
}

// Build emits a syntactically valid VCALENDAR/VEVENT from structured
// fields. No line folding is applied on output, matching the teacher's
// BuildFreeBusyICS style of writing CRLF-terminated lines directly rather
// than going through a generic encoder.
func Build(opts BuildOptions) (body string, uid string) {
	uid = opts.UID
	if uid == "" {
		uid = uuid.New().String() + "@caldav-server"
	}

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//caldav-mcp//server//EN\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s\r\n", uid)
	fmt.Fprintf(&b, "DTSTART:%s\r\n", opts.Start)
	fmt.Fprintf(&b, "DTEND:%s\r\n", opts.End)
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeText(opts.Title))
	if opts.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeText(opts.Description))
	}
	if opts.Location != "" {
		fmt.Fprintf(&b, "LOCATION:%s\r\n", escapeText(opts.Location))
	}
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")

	return b.String(), uid
}

func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"\n", `\n`,
		",", `\,`,
		";", `\;`,
	)
	return r.Replace(s)
}

// NormalizeTime accepts either iCal basic form (20260301T090000Z) or
// ISO 8601 (2026-03-01T09:00:00Z) and returns the iCal basic UTC form used
// for storage and comparisons. Returns the input unchanged if it matches
// neither recognizable shape closely enough to convert — the codec does
// not validate dates (§4.B), it only normalizes the two accepted MCP
// input shapes so that lexicographic range comparisons stay correct.
func NormalizeTime(s string) string {
	if len(s) == 16 && s[8] == 'T' && s[len(s)-1] == 'Z' {
		// already basic: YYYYMMDDTHHMMSSZ
		return s
	}
	// ISO 8601: 2006-01-02T15:04:05Z
	if len(s) >= 20 && s[4] == '-' && s[7] == '-' && s[10] == 'T' {
		digits := strings.Map(func(r rune) rune {
			if r == '-' || r == ':' {
				return -1
			}
			return r
		}, s)
		return digits
	}
	return s
}
