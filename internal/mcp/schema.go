package mcp

// toolSchema, inputSchema and propSchema describe the twelve tools for
// tools/list (§4.G). These are plain data, not reflected from the Go
// param structs, since the teacher corpus has no analogue for JSON Schema
// generation and spec.md pins the exact tool surface by hand.
type toolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string                `json:"type"`
	Properties map[string]propSchema `json:"properties"`
	Required   []string              `json:"required,omitempty"`
}

type propSchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

func obj(props map[string]propSchema, required ...string) inputSchema {
	return inputSchema{Type: "object", Properties: props, Required: required}
}

func str(desc string) propSchema {
	return propSchema{Type: "string", Description: desc}
}

func integer(desc string) propSchema {
	return propSchema{Type: "integer", Description: desc}
}

var toolSchemas = []toolSchema{
	{
		Name:        "list_calendars",
		Description: "List every calendar owned by or shared with the caller.",
		InputSchema: obj(map[string]propSchema{}),
	},
	{
		Name:        "get_calendar",
		Description: "Fetch one calendar by id.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
		}, "calendar_id"),
	},
	{
		Name:        "create_calendar",
		Description: "Create a new calendar owned by the caller.",
		InputSchema: obj(map[string]propSchema{
			"name":        str("display name"),
			"description": str("optional description"),
			"color":       str("optional hex color, e.g. #0E61B9"),
			"timezone":    str("optional IANA timezone, defaults to UTC"),
		}, "name"),
	},
	{
		Name:        "delete_calendar",
		Description: "Delete a calendar the caller owns.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
		}, "calendar_id"),
	},
	{
		Name:        "create_event",
		Description: "Create a new VEVENT in a calendar.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"title":       str("event summary"),
			"start":       str("start time, iCal basic or ISO 8601"),
			"end":         str("end time, iCal basic or ISO 8601"),
			"description": str("optional description"),
			"location":    str("optional location"),
		}, "calendar_id", "title", "start", "end"),
	},
	{
		Name:        "get_event",
		Description: "Fetch a single event by UID.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"event_uid":   str("event UID"),
		}, "calendar_id", "event_uid"),
	},
	{
		Name:        "update_event",
		Description: "Replace an existing event's fields, rotating its ETag.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"event_uid":   str("event UID"),
			"title":       str("event summary"),
			"start":       str("start time, iCal basic or ISO 8601"),
			"end":         str("end time, iCal basic or ISO 8601"),
			"description": str("optional description"),
			"location":    str("optional location"),
		}, "calendar_id", "event_uid", "title", "start", "end"),
	},
	{
		Name:        "delete_event",
		Description: "Delete an event by UID.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"event_uid":   str("event UID"),
		}, "calendar_id", "event_uid"),
	},
	{
		Name:        "query_events",
		Description: "List events in a calendar, optionally filtered to a time range.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"start":       str("optional range start, iCal basic or ISO 8601"),
			"end":         str("optional range end, iCal basic or ISO 8601"),
			"limit":       integer("max results, default 50, capped at 500"),
		}, "calendar_id"),
	},
	{
		Name:        "share_calendar",
		Description: "Grant or update another user's access to a calendar the caller owns.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"username":    str("target username"),
			"permission":  str(`"read" or "read-write"`),
		}, "calendar_id", "username", "permission"),
	},
	{
		Name:        "unshare_calendar",
		Description: "Revoke another user's access to a calendar the caller owns.",
		InputSchema: obj(map[string]propSchema{
			"calendar_id": str("calendar id"),
			"username":    str("target username"),
		}, "calendar_id", "username"),
	},
	{
		Name:        "list_shared_calendars",
		Description: "List calendars shared with the caller (not owned by them).",
		InputSchema: obj(map[string]propSchema{}),
	},
}
