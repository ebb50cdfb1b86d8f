// internal/app/system/authz/authz.go
package authz

import (
	"context"
	"errors"

	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
)

// UserCtx returns the caller identity and a found flag. ok=true means the
// request carried a verified identity with a non-empty id and email.
func UserCtx(ctx context.Context) (*auth.Identity, bool) {
	id := auth.IdentityFrom(ctx)
	if id == nil || id.ID == "" || id.Email == "" {
		return nil, false
	}
	return id, true
}

// Explain refines a policy denial for the current request. A plain
// Unauthorized becomes "invalid or expired token" when the request presented
// a bearer token that failed verification, so clients know to drop it.
func Explain(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrUnauthorized) && auth.TokenRejected(ctx) {
		return apperr.ErrTokenRejected
	}
	return err
}
