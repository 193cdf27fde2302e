package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flexicms/tenant-gateway/internal/domain"
)

var (
	// ErrNoSession means the request carried no credential at all.
	ErrNoSession = errors.New("no session credential")
	// ErrInvalidSession covers malformed, expired and badly signed tokens.
	ErrInvalidSession = errors.New("session token was invalid")
	// ErrRevoked means the token was signed out before it expired.
	ErrRevoked = errors.New("session was revoked")
)

// Resolver turns a raw credential into a session.
type Resolver struct {
	tokens      *TokenManager
	revocations RevocationStore
}

// NewResolver builds a resolver. revocations may be nil.
func NewResolver(tokens *TokenManager, revocations RevocationStore) *Resolver {
	return &Resolver{tokens: tokens, revocations: revocations}
}

// Resolve decodes the session from the cookie value, falling back to a
// Bearer Authorization header.
func (r *Resolver) Resolve(ctx context.Context, cookie, authorization string) (*domain.Session, error) {
	raw := strings.TrimSpace(cookie)
	if raw == "" {
		raw = bearerToken(authorization)
	}
	if raw == "" {
		return nil, ErrNoSession
	}

	claims, err := r.tokens.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	session := claims.Session()
	if session.Expired(r.tokens.now()) {
		return nil, ErrInvalidSession
	}

	if r.revocations != nil {
		revoked, err := r.revocations.IsRevoked(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return session, nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
