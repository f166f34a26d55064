// Package apperr defines the error taxonomy shared by the CalDAV and MCP
// transports so each can map a single internal error to its own wire
// representation (HTTP status vs JSON-RPC code).
package apperr

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPreconditionFailed  = errors.New("precondition failed")
	ErrBadRequest          = errors.New("bad request")
	ErrMethodNotAllowed    = errors.New("method not allowed")
	ErrConflict            = errors.New("conflict")
)

// Is reports whether err wraps target, delegating to errors.Is so callers
// can check apperr.Is(err, apperr.ErrNotFound) after storage wraps with
// fmt.Errorf("...: %w", err).
func Is(err, target error) bool {
	return errors.Is(err, target)
}
