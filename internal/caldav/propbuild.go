package caldav

import (
	"github.com/caldav-mcp/server/internal/store"
	"github.com/caldav-mcp/server/internal/xmlprop"
)

type propKey struct{ ns, local string }

// propSetter mutates a Prop to answer one (namespace, localname) pair.
type propSetter func(*xmlprop.Prop)

// buildPropStats answers a PROPFIND/REPORT prop request against a known
// set of property builders for one resource: requested names with no
// setter fall into a 404 propstat, everything answered goes into one 200
// propstat, matching §4.D's propstat-grouping-by-status rule.
func buildPropStats(req xmlprop.PropfindRequest, setters map[propKey]propSetter) []xmlprop.PropStat {
	var prop xmlprop.Prop
	var missing []xmlprop.RawProp

	if req.AllProp || req.PropName {
		for _, set := range setters {
			set(&prop)
		}
	} else {
		for _, name := range req.Names {
			ns := name.Space
			if ns == "" {
				ns = xmlprop.NSDAV
			}
			set, ok := setters[propKey{ns: ns, local: name.Local}]
			if !ok {
				missing = append(missing, xmlprop.RawProp{XMLName: name})
				continue
			}
			set(&prop)
		}
	}

	stats := []xmlprop.PropStat{{Prop: prop, Status: "HTTP/1.1 200 OK"}}
	if len(missing) > 0 {
		stats = append(stats, xmlprop.PropStat{
			Prop:   xmlprop.Prop{Unknown: missing},
			Status: "HTTP/1.1 404 Not Found",
		})
	}
	return stats
}

func principalSetter(href string, authenticated bool) propSetter {
	return func(p *xmlprop.Prop) {
		if authenticated {
			p.CurrentUserPrincipal = &xmlprop.Principal{Href: href}
		} else {
			p.CurrentUserPrincipal = &xmlprop.Principal{Unauthenticated: &struct{}{}}
		}
	}
}

func discoveryRootSetters(principalHref string, authenticated bool) map[propKey]propSetter {
	return map[propKey]propSetter{
		{xmlprop.NSDAV, "resourcetype"}:             func(p *xmlprop.Prop) { p.ResourceType = xmlprop.CollectionResourceType() },
		{xmlprop.NSDAV, "current-user-principal"}:   principalSetter(principalHref, authenticated),
		{xmlprop.NSDAV, "principal-collection-set"}: func(p *xmlprop.Prop) { p.PrincipalCollectionSet = &xmlprop.Hrefs{Values: []string{"/caldav/principals/"}} },
	}
}

func fixedAppleAccountSetters() map[propKey]propSetter {
	return map[propKey]propSetter{
		{xmlprop.NSDAV, "resourcetype"}: func(p *xmlprop.Prop) { p.ResourceType = xmlprop.CollectionResourceType() },
		{xmlprop.NSDAV, "displayname"}:  func(p *xmlprop.Prop) { p.DisplayName = xmlprop.StrPtr("CalDAV Account") },
	}
}

func homeSetters(username, href string) map[propKey]propSetter {
	return map[propKey]propSetter{
		{xmlprop.NSDAV, "resourcetype"}:           func(p *xmlprop.Prop) { p.ResourceType = xmlprop.CollectionResourceType() },
		{xmlprop.NSDAV, "displayname"}:             func(p *xmlprop.Prop) { p.DisplayName = xmlprop.StrPtr(username) },
		{xmlprop.NSDAV, "current-user-principal"}: principalSetter("/caldav/principals/"+username+"/", true),
		{xmlprop.NSCal, "calendar-home-set"}:       func(p *xmlprop.Prop) { p.CalendarHomeSet = &xmlprop.Href{Value: href} },
	}
}

func collectionSetters(cal *store.Calendar) map[propKey]propSetter {
	return map[propKey]propSetter{
		{xmlprop.NSDAV, "resourcetype"}: func(p *xmlprop.Prop) { p.ResourceType = xmlprop.CalendarResourceType() },
		{xmlprop.NSDAV, "displayname"}:  func(p *xmlprop.Prop) { p.DisplayName = xmlprop.StrPtr(cal.Name) },
		{xmlprop.NSDAV, "sync-token"}:   func(p *xmlprop.Prop) { p.SyncToken = xmlprop.StrPtr(cal.SyncToken) },
		{xmlprop.NSCS, "getctag"}:       func(p *xmlprop.Prop) { p.GetCTag = xmlprop.StrPtr(cal.CTag) },
		{xmlprop.NSCal, "calendar-description"}: func(p *xmlprop.Prop) { p.CalendarDescription = xmlprop.StrPtr(cal.Description) },
		{xmlprop.NSCal, "supported-calendar-component-set"}: func(p *xmlprop.Prop) {
			p.SupportedCalendarComponentSet = &xmlprop.SupportedCompSet{Comp: []xmlprop.Comp{{Name: "VEVENT"}, {Name: "VTODO"}}}
		},
		{xmlprop.NSApple, "calendar-color"}: func(p *xmlprop.Prop) { p.CalendarColor = xmlprop.StrPtr(cal.Color) },
	}
}

func objectSetters(obj *store.CalendarObject) map[propKey]propSetter {
	return map[propKey]propSetter{
		{xmlprop.NSDAV, "getetag"}:         func(p *xmlprop.Prop) { p.GetETag = xmlprop.StrPtr(quoteETag(obj.ETag)) },
		{xmlprop.NSDAV, "getcontenttype"}:  func(p *xmlprop.Prop) { p.GetContentType = xmlprop.StrPtr("text/calendar; charset=utf-8") },
		{xmlprop.NSDAV, "getlastmodified"}: func(p *xmlprop.Prop) { p.GetLastModified = xmlprop.StrPtr(obj.UpdatedAt.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")) },
		{xmlprop.NSCal, "calendar-data"}:   func(p *xmlprop.Prop) { p.CalendarData = xmlprop.StrPtr(obj.ICalData) },
	}
}
