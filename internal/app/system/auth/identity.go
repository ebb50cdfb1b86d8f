package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// Identity is the verified caller attached to a request context.
type Identity struct {
	ID        string
	Email     string
	Name      string
	Role      models.Role
	ExpiresAt time.Time
}

// IsAdmin reports whether the identity carries the ADMIN role. Safe on nil.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// Owns reports whether email belongs to this identity (case-insensitive).
func (i *Identity) Owns(email string) bool {
	return i != nil && i.Email != "" && strings.EqualFold(i.Email, strings.TrimSpace(email))
}

// Expired reports whether the identity's token has passed its expiry.
// A zero ExpiresAt never expires.
func (i *Identity) Expired(now time.Time) bool {
	return i != nil && !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// IdentityFromUser builds the identity that a fresh login for u would carry.
func IdentityFromUser(u models.User) Identity {
	return Identity{
		ID:    u.ID.Hex(),
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}

type ctxKey string

const (
	identityKey      ctxKey = "identity"
	tokenRejectedKey ctxKey = "tokenRejected"
	sessionWriterKey ctxKey = "sessionWriter"
)

// WithIdentity returns ctx carrying id. A nil id leaves the caller anonymous.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if id == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity, or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// WithTokenRejected marks ctx as carrying a bearer token that failed
// verification.
func WithTokenRejected(ctx context.Context) context.Context {
	return context.WithValue(ctx, tokenRejectedKey, true)
}

// TokenRejected reports whether the request presented an invalid or expired
// bearer token.
func TokenRejected(ctx context.Context) bool {
	v, _ := ctx.Value(tokenRejectedKey).(bool)
	return v
}

// SessionWriter persists a signed-in identity to the caller's cookie session.
type SessionWriter func(Identity) error

// WithSessionWriter attaches w to ctx. Transport handlers that own the
// http.ResponseWriter set this so a login can also establish a cookie session.
func WithSessionWriter(ctx context.Context, w SessionWriter) context.Context {
	return context.WithValue(ctx, sessionWriterKey, w)
}

// WriteSession persists id through the SessionWriter on ctx. It is a no-op
// when none is attached.
func WriteSession(ctx context.Context, id Identity) error {
	w, _ := ctx.Value(sessionWriterKey).(SessionWriter)
	if w == nil {
		return nil
	}
	return w(id)
}
