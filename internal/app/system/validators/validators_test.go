package validators_test

import (
	"context"
	"testing"
	"time"

	postingstore "github.com/dalemusser/voluntahub/internal/app/store/postings"
	userstore "github.com/dalemusser/voluntahub/internal/app/store/users"
	"github.com/dalemusser/voluntahub/internal/app/system/validators"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"github.com/dalemusser/voluntahub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*mongo.Database, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)

	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db, ctx
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db, ctx := setup(t)

	// Second call should also succeed (idempotent)
	if err := validators.EnsureAll(ctx, db, nil); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db, ctx := setup(t)

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}

	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}
	for _, expected := range []string{"users", "postings", "audit_events"} {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestUsersValidator(t *testing.T) {
	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{
			name:    "missing required fields",
			doc:     bson.M{"name": "Ana"},
			wantErr: true,
		},
		{
			name:    "valid user",
			doc:     bson.M{"name": "Ana", "email": "ana@example.com", "password_hash": "x", "role": "USER"},
			wantErr: false,
		},
		{
			name:    "valid admin",
			doc:     bson.M{"name": "Root", "email": "root@example.com", "password_hash": "x", "role": "ADMIN"},
			wantErr: false,
		},
		{
			name:    "lowercase role",
			doc:     bson.M{"name": "Ana", "email": "ana2@example.com", "password_hash": "x", "role": "admin"},
			wantErr: true,
		},
		{
			name:    "blank name",
			doc:     bson.M{"name": "   ", "email": "ana3@example.com", "password_hash": "x", "role": "USER"},
			wantErr: true,
		},
		{
			name:    "email not normalized",
			doc:     bson.M{"name": "Ana", "email": "Ana@Example.com", "password_hash": "x", "role": "USER"},
			wantErr: true,
		},
	}

	db, ctx := setup(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection("users").InsertOne(ctx, tt.doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert failed: %v", err)
			}
		})
	}
}

func TestPostingsValidator(t *testing.T) {
	valid := func() bson.M {
		return bson.M{
			"title":       "Reparto",
			"owner_email": "ana@example.com",
			"date":        "2026-05-01",
			"description": "Ayuda en el banco de alimentos",
			"kind":        "OFFER",
		}
	}

	tests := []struct {
		name    string
		mutate  func(bson.M)
		wantErr bool
	}{
		{"valid", func(bson.M) {}, false},
		{"with image", func(d bson.M) { d["image"] = "data:image/png;base64,AAAA" }, false},
		{"missing kind", func(d bson.M) { delete(d, "kind") }, true},
		{"unknown kind", func(d bson.M) { d["kind"] = "PETICION" }, true},
		{"blank title", func(d bson.M) { d["title"] = " " }, true},
		{"image not a string", func(d bson.M) { d["image"] = 42 }, true},
	}

	db, ctx := setup(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := valid()
			tt.mutate(doc)
			_, err := db.Collection("postings").InsertOne(ctx, doc)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("insert failed: %v", err)
			}
		})
	}
}

// The stores must only ever write documents the validators accept.
func TestStoresSatisfyValidators(t *testing.T) {
	db, ctx := setup(t)

	u, err := userstore.New(db).Create(ctx, models.User{
		Name:         "  Ana  ",
		Email:        " Ana@Example.COM ",
		PasswordHash: "hashed",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	ps := postingstore.New(db)
	p, err := ps.Create(ctx, models.Posting{
		Title:       "Reparto",
		OwnerEmail:  u.Email,
		Date:        time.Now().Format("2006-01-02"),
		Description: "Ayuda",
		Kind:        models.KindRequest,
	})
	if err != nil {
		t.Fatalf("create posting: %v", err)
	}

	offer := models.KindOffer
	if _, err := ps.Update(ctx, p.ID, models.PostingPatch{Kind: &offer}); err != nil {
		t.Fatalf("update posting: %v", err)
	}
}
