package xmlprop

import "encoding/xml"

// PropertyUpdate is the parsed body of a PROPPATCH request, covering the
// three mutable calendar properties named in §4.F: displayname,
// calendar-description, and the Apple calendar-color extension.
type PropertyUpdate struct {
	SetDisplayName    *string
	SetDescription    *string
	SetColor          *string
	RemoveDisplayName bool
	RemoveDescription bool
	RemoveColor       bool
}

type propUpdateProp struct {
	DisplayName         *string `xml:"DAV: displayname"`
	CalendarDescription *string `xml:"urn:ietf:params:xml:ns:caldav calendar-description"`
	CalendarColor       *string `xml:"http://apple.com/ns/ical/ calendar-color"`
}

type propUpdateXML struct {
	XMLName xml.Name `xml:"DAV: propertyupdate"`
	Set     *struct {
		Prop propUpdateProp `xml:"DAV: prop"`
	} `xml:"DAV: set"`
	Remove *struct {
		Prop propUpdateProp `xml:"DAV: prop"`
	} `xml:"DAV: remove"`
}

func ParsePropertyUpdate(body []byte) (PropertyUpdate, error) {
	var req propUpdateXML
	if err := xml.Unmarshal(body, &req); err != nil {
		return PropertyUpdate{}, err
	}
	return propertyUpdateFrom(req.Set, req.Remove), nil
}

// mkcalendarXML covers MKCALENDAR's <C:mkcalendar><D:set><D:prop> body,
// which carries the same displayname/calendar-description/calendar-color
// set as PROPPATCH under a different root element (§4.F MKCALENDAR).
type mkcalendarXML struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:caldav mkcalendar"`
	Set     *struct {
		Prop propUpdateProp `xml:"DAV: prop"`
	} `xml:"DAV: set"`
}

// ParseMkcalendar parses an optional MKCALENDAR request body. A missing or
// empty body is valid and yields every field unset, so callers fall back
// to their defaults (§4.F: displayname defaults to the path calendar id,
// calendar-color to #0E61B9).
func ParseMkcalendar(body []byte) (PropertyUpdate, error) {
	if len(body) == 0 {
		return PropertyUpdate{}, nil
	}
	var req mkcalendarXML
	if err := xml.Unmarshal(body, &req); err != nil {
		return PropertyUpdate{}, err
	}
	return propertyUpdateFrom(req.Set, nil), nil
}

func propertyUpdateFrom(set, remove *struct {
	Prop propUpdateProp `xml:"DAV: prop"`
}) PropertyUpdate {
	var out PropertyUpdate
	if set != nil {
		out.SetDisplayName = set.Prop.DisplayName
		out.SetDescription = set.Prop.CalendarDescription
		out.SetColor = set.Prop.CalendarColor
	}
	if remove != nil {
		out.RemoveDisplayName = remove.Prop.DisplayName != nil
		out.RemoveDescription = remove.Prop.CalendarDescription != nil
		out.RemoveColor = remove.Prop.CalendarColor != nil
	}
	return out
}
