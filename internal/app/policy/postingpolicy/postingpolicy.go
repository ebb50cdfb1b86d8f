// internal/app/policy/postingpolicy/postingpolicy.go
//
// Package postingpolicy decides who may see and change volunteering postings.
// Admins see and manage every posting; users only their own.
package postingpolicy

import (
	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// CanList allows any signed-in caller. What they see is narrowed by ListScope.
func CanList(id *auth.Identity) error {
	if id == nil {
		return apperr.ErrUnauthorized
	}
	return nil
}

// ListScope returns the owner email a listing must be filtered to, or "" for
// an unfiltered listing (admins).
func ListScope(id *auth.Identity) string {
	if id == nil || id.IsAdmin() {
		return ""
	}
	return id.Email
}

// CanView allows admins and the posting's owner.
func CanView(id *auth.Identity, p models.Posting) error {
	return ownerOrAdmin(id, p)
}

// CanCreate allows any signed-in caller.
func CanCreate(id *auth.Identity) error {
	return CanList(id)
}

// Owner is the owner email assigned to a new posting: always the caller's,
// never a value from the request.
func Owner(id *auth.Identity) string {
	if id == nil {
		return ""
	}
	return id.Email
}

// CanModify allows admins and the posting's owner to update or delete it.
func CanModify(id *auth.Identity, p models.Posting) error {
	return ownerOrAdmin(id, p)
}

func ownerOrAdmin(id *auth.Identity, p models.Posting) error {
	if id == nil {
		return apperr.ErrUnauthorized
	}
	if id.IsAdmin() || id.Owns(p.OwnerEmail) {
		return nil
	}
	return apperr.ErrForbidden
}
