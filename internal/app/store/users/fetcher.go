package userstore

import (
	"context"
	"errors"

	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Fetcher loads the current state of an account so long-lived connections
// can notice deletions and role changes made after their token was issued.
type Fetcher struct {
	users *mongo.Collection
}

// NewFetcher creates a Fetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{users: db.Collection("users")}
}

// FetchIdentity returns the identity for userID as stored now. It returns
// (nil, nil) when the user no longer exists or the id is malformed, and an
// error only when the lookup itself failed.
func (f *Fetcher) FetchIdentity(ctx context.Context, userID string) (*auth.Identity, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id":   1,
		"name":  1,
		"email": 1,
		"role":  1,
	})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	id := auth.IdentityFromUser(u)
	return &id, nil
}
