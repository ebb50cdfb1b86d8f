package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/voluntahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user whose password is password (hashed at the
// minimum bcrypt cost to keep tests fast).
func (f *Fixtures) CreateUser(ctx context.Context, name, email, password string, role models.Role) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAdmin is a convenience wrapper for an ADMIN user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	return f.CreateUser(ctx, name, email, "admin-password", models.RoleAdmin)
}

// CreatePosting inserts a posting owned by ownerEmail.
func (f *Fixtures) CreatePosting(ctx context.Context, title, ownerEmail string, kind models.Kind) models.Posting {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Posting{
		ID:          primitive.NewObjectID(),
		Title:       title,
		OwnerEmail:  ownerEmail,
		Date:        "2026-05-01",
		Description: "Descripción de " + title,
		Kind:        kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := f.db.Collection("postings").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test posting: %v", err)
	}
	return p
}
