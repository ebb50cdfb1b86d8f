// internal/domain/models/posting.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind distinguishes volunteering requests from offers.
type Kind string

const (
	KindRequest Kind = "REQUEST"
	KindOffer   Kind = "OFFER"
)

// Valid reports whether k is exactly one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindRequest || k == KindOffer
}

// Posting is a volunteering offer or request.
//
// OwnerEmail is set from the creating caller's identity and never changes.
// Image is an opaque caller payload (typically base64) stored as given.
type Posting struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	OwnerEmail  string             `bson:"owner_email" json:"owner_email"`
	Date        string             `bson:"date" json:"date"`
	Description string             `bson:"description" json:"description"`
	Kind        Kind               `bson:"kind" json:"kind"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PostingPatch holds the fields of a partial update. Nil means unchanged.
type PostingPatch struct {
	Title       *string
	Date        *string
	Description *string
	Kind        *Kind
	Image       *string
}

// IsEmpty reports whether the patch changes nothing.
func (p PostingPatch) IsEmpty() bool {
	return p.Title == nil && p.Date == nil && p.Description == nil && p.Kind == nil && p.Image == nil
}

// Changes returns the supplied fields keyed by their JSON names.
func (p PostingPatch) Changes() map[string]any {
	m := make(map[string]any, 5)
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Date != nil {
		m["date"] = *p.Date
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Kind != nil {
		m["kind"] = *p.Kind
	}
	if p.Image != nil {
		m["image"] = *p.Image
	}
	return m
}
