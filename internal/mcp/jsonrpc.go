// Package mcp implements the MCP dispatcher (§4.G): a hand-rolled JSON-RPC
// 2.0 envelope over HTTP at /mcp, Bearer-authenticated, exposing twelve
// tools backed by Store. Grounded on the teacher's internal/dav/caldav
// *Handlers pattern for dependency injection and request logging; the
// JSON-RPC envelope itself has no teacher analogue and is hand-built per
// spec.md §4.G's exact method/error-code contract (see DESIGN.md).
package mcp

import "encoding/json"

// Error codes per spec.md §4.G / §7.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeApplication    = -32000
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func errResponse(id json.RawMessage, code int, message string) response {
	return response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

func okResponse(id json.RawMessage, result interface{}) response {
	return response{JSONRPC: "2.0", ID: id, Result: result}
}

// toolResult is the {content:[{type:"text", text:<JSON>}]} envelope every
// successful tools/call result is wrapped in (§4.G).
type toolResult struct {
	Content []toolContent `json:"content"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(payload interface{}) (toolResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return toolResult{}, err
	}
	return toolResult{Content: []toolContent{{Type: "text", Text: string(b)}}}, nil
}
