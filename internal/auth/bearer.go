package auth

import (
	"context"
	"strings"
	"time"

	"github.com/caldav-mcp/server/internal/apperr"
	"github.com/caldav-mcp/server/internal/hash"
	"github.com/caldav-mcp/server/internal/store"
)

// Bearer implements §4.E.3: the candidate token is checked against every
// stored MCP token hash (timing-safe per comparison), since tokens are
// opaque and carry no lookup key of their own.
type Bearer struct {
	Store store.Store
}

func (b *Bearer) Authenticate(ctx context.Context, header string) (*Principal, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, apperr.ErrUnauthorized
	}

	tokens, err := b.Store.ListAllMCPTokens(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, t := range tokens {
		match, err := hash.Verify(t.TokenHash, token)
		if err != nil || !match {
			continue
		}
		if t.ExpiresAt != nil && t.ExpiresAt.Before(now) {
			return nil, apperr.ErrUnauthorized
		}
		u, err := b.Store.GetUserByID(ctx, t.UserID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, apperr.ErrUnauthorized
		}
		return &Principal{UserID: u.ID, Username: u.Username}, nil
	}
	return nil, apperr.ErrUnauthorized
}
