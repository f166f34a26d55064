package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/hash"
	"github.com/caldav-mcp/server/internal/store"
)

var errNoBasicHeader = errors.New("auth: no basic authorization header")

// StrictBasic requires a well-formed Authorization: Basic header and a
// matching password; it never falls back to path-derived identity.
type StrictBasic struct {
	Store store.Store
}

func (b *StrictBasic) Authenticate(ctx context.Context, header string) (*Principal, error) {
	if header == "" {
		return nil, errNoBasicHeader
	}
	username, password, err := decodeBasic(header)
	if err != nil {
		return nil, err
	}

	u, err := b.Store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrUnauthorized
	}
	ok, err := hash.Verify(u.PasswordHash, password)
	if err != nil || !ok {
		return nil, apperr.ErrUnauthorized
	}
	return &Principal{UserID: u.ID, Username: u.Username}, nil
}

func decodeBasic(header string) (username, password string, err error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return "", "", apperr.ErrUnauthorized
	}
	dec, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", apperr.ErrUnauthorized
	}
	creds := strings.SplitN(string(dec), ":", 2)
	if len(creds) != 2 {
		return "", "", apperr.ErrUnauthorized
	}
	return creds[0], creds[1], nil
}

// BasicOrPath implements the Apple dataaccessd accommodation (§4.E.2): when
// an Authorization header is present it behaves exactly like StrictBasic.
// Otherwise it trusts the {username} path segment as an identity claim
// without verifying a password — callers MUST perform their own ownership
// check before treating the result as authorization.
type BasicOrPath struct {
	Store store.Store
	inner StrictBasic
}

func NewBasicOrPath(s store.Store) *BasicOrPath {
	return &BasicOrPath{Store: s, inner: StrictBasic{Store: s}}
}

func (b *BasicOrPath) Authenticate(ctx context.Context, header, pathUsername string) (*Principal, error) {
	if header != "" {
		return b.inner.Authenticate(ctx, header)
	}
	if pathUsername == "" {
		return nil, apperr.ErrUnauthorized
	}
	u, err := b.Store.GetUserByUsername(ctx, pathUsername)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrUnauthorized
	}
	return &Principal{UserID: u.ID, Username: u.Username}, nil
}
