package xmlprop

import "encoding/xml"

// PropfindRequest is the parsed body of a PROPFIND request. AllProp and
// PropName requests are treated as "return everything known" by callers,
// matching the teacher's default-to-permissive handling of prop requests.
type PropfindRequest struct {
	AllProp  bool
	PropName bool
	Names    []xml.Name
}

type propfindXML struct {
	XMLName  xml.Name  `xml:"DAV: propfind"`
	AllProp  *struct{} `xml:"DAV: allprop"`
	PropName *struct{} `xml:"DAV: propname"`
	Prop     *struct {
		Any []RawProp `xml:",any"`
	} `xml:"DAV: prop"`
}

// ParsePropfind parses a PROPFIND body. An empty body is treated as an
// allprop request, per RFC 4918 §9.1's note that a missing body behaves
// as a propname/allprop request would in practice for permissive servers.
func ParsePropfind(body []byte) (PropfindRequest, error) {
	if len(body) == 0 {
		return PropfindRequest{AllProp: true}, nil
	}
	var req propfindXML
	if err := xml.Unmarshal(body, &req); err != nil {
		return PropfindRequest{}, err
	}
	out := PropfindRequest{
		AllProp:  req.AllProp != nil,
		PropName: req.PropName != nil,
	}
	if req.Prop != nil {
		for _, p := range req.Prop.Any {
			out.Names = append(out.Names, p.XMLName)
		}
	}
	return out, nil
}

// Has reports whether name (local part, DAV: namespace assumed unless
// otherwise qualified) was explicitly requested.
func (r PropfindRequest) Has(ns, local string) bool {
	if r.AllProp {
		return true
	}
	for _, n := range r.Names {
		if n.Local == local && (n.Space == ns || n.Space == "") {
			return true
		}
	}
	return false
}
