// Package xmlprop is the namespace-aware WebDAV/CalDAV XML layer (§4.D):
// Multi-Status response types, known-property builders, and the request
// parsers PROPFIND/PROPPATCH/REPORT need. Grounded on the teacher's
// internal/dav/common package (types.go's XMLName-per-field style), hand-
// rolled rather than delegated to a DAV framework since precise control
// over namespace prefixes and propstat grouping is the point of this
// layer (§4.D).
package xmlprop

import (
	"bytes"
	"encoding/xml"
	"net/http"
)

const (
	NSDAV   = "DAV:"
	NSCal   = "urn:ietf:params:xml:ns:caldav"
	NSApple = "http://apple.com/ns/ical/"
	NSCS    = "http://calendarserver.org/ns/"
)

type MultiStatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	XmlnsD    string     `xml:"xmlns:D,attr"`
	XmlnsC    string     `xml:"xmlns:C,attr"`
	XmlnsA    string     `xml:"xmlns:A,attr"`
	XmlnsCS   string     `xml:"xmlns:CS,attr"`
	Responses []Response `xml:"response"`
	SyncToken string     `xml:"DAV: sync-token,omitempty"`
}

func NewMultiStatus() *MultiStatus {
	return &MultiStatus{XmlnsD: NSDAV, XmlnsC: NSCal, XmlnsA: NSApple, XmlnsCS: NSCS}
}

type Response struct {
	Href     string     `xml:"href"`
	PropStat []PropStat `xml:"propstat,omitempty"`
	Status   string     `xml:"status,omitempty"`
}

type PropStat struct {
	Prop   Prop   `xml:"prop"`
	Status string `xml:"status"`
}

// RawProp captures an empty placeholder element by name only, used to
// report an unrecognized requested property in a 404 propstat.
type RawProp struct {
	XMLName xml.Name
}

// Prop is the union of every property this server knows how to produce.
// A PROPFIND/REPORT handler sets only the fields requested and present;
// properties requested but not recognized are collected into Unknown and
// reported under a separate 404 propstat (§4.F PROPFIND contract).
type Prop struct {
	ResourceType                   *ResourceType `xml:"DAV: resourcetype,omitempty"`
	DisplayName                    *string       `xml:"DAV: displayname,omitempty"`
	CurrentUserPrincipal           *Principal    `xml:"DAV: current-user-principal,omitempty"`
	PrincipalURL                   *Href         `xml:"DAV: principal-URL>href,omitempty"`
	PrincipalCollectionSet         *Hrefs        `xml:"DAV: principal-collection-set,omitempty"`
	Owner                         *Href         `xml:"DAV: owner>href,omitempty"`
	SyncToken                     *string       `xml:"DAV: sync-token,omitempty"`
	GetETag                       *string       `xml:"DAV: getetag,omitempty"`
	GetContentType                *string       `xml:"DAV: getcontenttype,omitempty"`
	GetLastModified                *string       `xml:"DAV: getlastmodified,omitempty"`

	GetCTag *string `xml:"http://calendarserver.org/ns/ getctag,omitempty"`

	CalendarHomeSet                *Href             `xml:"urn:ietf:params:xml:ns:caldav calendar-home-set>href,omitempty"`
	SupportedCalendarComponentSet  *SupportedCompSet `xml:"urn:ietf:params:xml:ns:caldav supported-calendar-component-set,omitempty"`
	CalendarDescription             *string          `xml:"urn:ietf:params:xml:ns:caldav calendar-description,omitempty"`
	CalendarData                    *string          `xml:"urn:ietf:params:xml:ns:caldav calendar-data,omitempty"`

	CalendarColor *string `xml:"http://apple.com/ns/ical/ calendar-color,omitempty"`

	Unknown []RawProp `xml:",any"`
}

type ResourceType struct {
	Collection *struct{} `xml:"DAV: collection,omitempty"`
	Principal  *struct{} `xml:"DAV: principal,omitempty"`
	Calendar   *struct{} `xml:"urn:ietf:params:xml:ns:caldav calendar,omitempty"`
}

// Principal renders either <D:href>...</D:href> or <D:unauthenticated/>,
// per §4.F level 2's discovery-root behaviour.
type Principal struct {
	Href            string    `xml:"DAV: href,omitempty"`
	Unauthenticated *struct{} `xml:"DAV: unauthenticated,omitempty"`
}

type Href struct {
	Value string `xml:",chardata"`
}

type Hrefs struct {
	Values []string `xml:"DAV: href"`
}

type SupportedCompSet struct {
	Comp []Comp `xml:"urn:ietf:params:xml:ns:caldav comp"`
}

type Comp struct {
	Name string `xml:"name,attr"`
}

func CalendarResourceType() *ResourceType {
	return &ResourceType{Collection: &struct{}{}, Calendar: &struct{}{}}
}

func CollectionResourceType() *ResourceType {
	return &ResourceType{Collection: &struct{}{}}
}

func PrincipalResourceType() *ResourceType {
	return &ResourceType{Collection: &struct{}{}, Principal: &struct{}{}}
}

func StrPtr(s string) *string { return &s }

// ServeMultiStatus writes ms as a 207 Multi-Status response.
func ServeMultiStatus(w http.ResponseWriter, ms *MultiStatus) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(ms); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_, err := w.Write(buf.Bytes())
	return err
}
