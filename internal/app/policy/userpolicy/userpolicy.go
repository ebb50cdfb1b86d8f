// internal/app/policy/userpolicy/userpolicy.go
//
// Package userpolicy decides who may read and manage user accounts.
// Every function is pure: nil means allow, otherwise the returned error is
// apperr.ErrUnauthorized for anonymous callers or apperr.ErrForbidden.
package userpolicy

import (
	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

func requireAdmin(id *auth.Identity) error {
	if id == nil {
		return apperr.ErrUnauthorized
	}
	if !id.IsAdmin() {
		return apperr.ErrForbidden
	}
	return nil
}

// CanList allows admins to list every account.
func CanList(id *auth.Identity) error {
	return requireAdmin(id)
}

// CanGetByEmail allows admins, and any user looking up their own email.
func CanGetByEmail(id *auth.Identity, email string) error {
	if id == nil {
		return apperr.ErrUnauthorized
	}
	if id.IsAdmin() || id.Owns(email) {
		return nil
	}
	return apperr.ErrForbidden
}

// CanCreate always allows: registration is public.
func CanCreate(id *auth.Identity) error {
	return nil
}

// EffectiveRole returns the role a new account receives. Only admins may
// choose; everyone else registers as USER whatever they ask for.
func EffectiveRole(id *auth.Identity, requested models.Role) models.Role {
	if id.IsAdmin() && requested.Valid() {
		return requested
	}
	return models.RoleUser
}

// CanDelete allows admins to delete accounts, by email or by index.
func CanDelete(id *auth.Identity) error {
	return requireAdmin(id)
}

// CanReadAudit allows admins to read the audit trail of logins and account
// changes.
func CanReadAudit(id *auth.Identity) error {
	return requireAdmin(id)
}
