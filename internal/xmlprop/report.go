package xmlprop

import "encoding/xml"

// ReportKind identifies which REPORT body was parsed (§4.F REPORT contract).
type ReportKind int

const (
	ReportUnknown ReportKind = iota
	ReportCalendarMultiget
	ReportCalendarQuery
	ReportSyncCollection
)

type ParsedReport struct {
	Kind      ReportKind
	Names     []xml.Name // requested prop list
	Hrefs     []string   // calendar-multiget
	TimeRange *TimeRange // calendar-query, if a time-range filter was present
	SyncToken string     // sync-collection
}

type TimeRange struct {
	Start string
	End   string
}

type propContainer struct {
	Any []RawProp `xml:",any"`
}

func namesOf(p propContainer) []xml.Name {
	var out []xml.Name
	for _, raw := range p.Any {
		out = append(out, raw.XMLName)
	}
	return out
}

type multigetXML struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:caldav calendar-multiget"`
	Prop    propContainer `xml:"DAV: prop"`
	Hrefs   []string      `xml:"DAV: href"`
}

type calendarQueryXML struct {
	XMLName xml.Name      `xml:"urn:ietf:params:xml:ns:caldav calendar-query"`
	Prop    propContainer `xml:"DAV: prop"`
	Filter  compFilterXML `xml:"urn:ietf:params:xml:ns:caldav filter"`
}

type compFilterXML struct {
	CompFilter compFilterNode `xml:"urn:ietf:params:xml:ns:caldav comp-filter"`
}

type compFilterNode struct {
	Name       string          `xml:"name,attr"`
	CompFilter *compFilterNode `xml:"urn:ietf:params:xml:ns:caldav comp-filter,omitempty"`
	TimeRange  *timeRangeXML   `xml:"urn:ietf:params:xml:ns:caldav time-range,omitempty"`
}

type timeRangeXML struct {
	Start string `xml:"start,attr,omitempty"`
	End   string `xml:"end,attr,omitempty"`
}

type syncCollectionXML struct {
	XMLName   xml.Name      `xml:"DAV: sync-collection"`
	SyncToken string        `xml:"DAV: sync-token"`
	Prop      propContainer `xml:"DAV: prop"`
}

// ParseReport sniffs the outer element name to pick a parser, since the
// three REPORT bodies share no common wrapper (§4.F REPORT dispatch).
func ParseReport(body []byte) (ParsedReport, error) {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &probe); err != nil {
		return ParsedReport{}, err
	}

	switch probe.XMLName.Local {
	case "calendar-multiget":
		var req multigetXML
		if err := xml.Unmarshal(body, &req); err != nil {
			return ParsedReport{}, err
		}
		return ParsedReport{Kind: ReportCalendarMultiget, Names: namesOf(req.Prop), Hrefs: req.Hrefs}, nil

	case "calendar-query":
		var req calendarQueryXML
		if err := xml.Unmarshal(body, &req); err != nil {
			return ParsedReport{}, err
		}
		out := ParsedReport{Kind: ReportCalendarQuery, Names: namesOf(req.Prop)}
		if tr := extractTimeRange(&req.Filter.CompFilter); tr != nil {
			out.TimeRange = tr
		}
		return out, nil

	case "sync-collection":
		var req syncCollectionXML
		if err := xml.Unmarshal(body, &req); err != nil {
			return ParsedReport{}, err
		}
		return ParsedReport{Kind: ReportSyncCollection, Names: namesOf(req.Prop), SyncToken: req.SyncToken}, nil
	}

	return ParsedReport{Kind: ReportUnknown}, nil
}

func extractTimeRange(c *compFilterNode) *TimeRange {
	for c != nil {
		if c.TimeRange != nil {
			return &TimeRange{Start: c.TimeRange.Start, End: c.TimeRange.End}
		}
		c = c.CompFilter
	}
	return nil
}
