// Package postingstore persists volunteering postings.
package postingstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/voluntahub/internal/app/system/normalize"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("postings")}
}

var (
	errBadKind  = errors.New(`kind must be "REQUEST"|"OFFER"`)
	errNoOwner  = errors.New("posting owner is required")
	errNoChange = errors.New("update has no fields")
)

// Create inserts p with a new id and timestamps. Text fields are stored as
// given; only the owner email is normalized.
func (s *Store) Create(ctx context.Context, p models.Posting) (models.Posting, error) {
	if !p.Kind.Valid() {
		return models.Posting{}, errBadKind
	}
	p.OwnerEmail = normalize.Email(p.OwnerEmail)
	if p.OwnerEmail == "" {
		return models.Posting{}, errNoOwner
	}

	p.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Posting{}, err
	}
	return p, nil
}

// GetByID loads a posting. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Posting, error) {
	var p models.Posting
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns postings in creation order (ascending _id). A non-empty
// owner restricts the result to that owner's postings.
func (s *Store) List(ctx context.Context, owner string) ([]models.Posting, error) {
	filter := bson.M{}
	if owner != "" {
		filter["owner_email"] = normalize.Email(owner)
	}
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Posting, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the non-nil fields of patch and returns the posting as
// stored afterwards. Returns mongo.ErrNoDocuments if no posting matched.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, patch models.PostingPatch) (*models.Posting, error) {
	if patch.IsEmpty() {
		return nil, errNoChange
	}
	if patch.Kind != nil && !patch.Kind.Valid() {
		return nil, errBadKind
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range patch.Changes() {
		set[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Posting
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a posting. Returns the number deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
