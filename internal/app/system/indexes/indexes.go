// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Index names. Stable so operators can find them in mongosh.
const (
	UsersEmailUnique     = "uniq_users_email"
	UsersNameCI          = "idx_users_nameci__id"
	PostingsOwnerCreated = "idx_postings_owner__id"
	PostingsKind         = "idx_postings_kind__id"
	AuditTimestamp       = "idx_audit_ts"
	AuditUserTimestamp   = "idx_audit_user_ts"
	AuditCategoryType    = "idx_audit_category_type_ts"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var problems []string

	if err := ensureUsers(ctx, db, logger); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensurePostings(ctx, db, logger); err != nil {
		problems = append(problems, "postings: "+err.Error())
	}
	if err := ensureAudit(ctx, db, logger); err != nil {
		problems = append(problems, "audit_events: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection, logger *zap.Logger) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			logger.Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, logger *zap.Logger) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))
		unique := desiredUnique != nil && *desiredUnique

		start := time.Now()
		log := logger.With(
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", unique))
		log.Info("ensuring index")

		recreate := func(dropName string) error {
			if _, err := coll.Indexes().DropOne(ctx, dropName); err != nil {
				return fmt.Errorf("drop %s failed: %w", dropName, err)
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				if isDuplicateKeyErr(err) && unique {
					return errors.New("cannot create unique index (duplicates present)")
				}
				return err
			}
			return nil
		}

		ex, found := listExisting(ctx, coll, logger)[desiredSig]
		if !found {
			_, err := coll.Indexes().CreateOne(ctx, m)
			if err == nil {
				log.Info("index ensured", zap.Duration("took", time.Since(start)))
				continue
			}
			if !isOptionsConflictErr(err) {
				log.Warn("index ensure failed", zap.Error(err))
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}
			// Same keys under a name we did not see on the first listing.
			ex, found = listExisting(ctx, coll, logger)[desiredSig]
			if !found {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName) {
			log.Info("reusing existing index", zap.Duration("took", time.Since(start)))
			continue
		}

		// Name or options differ: drop and recreate with the desired definition.
		if err := recreate(ex.Name); err != nil {
			log.Warn("index recreate failed", zap.String("existing", ex.Name), zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		log.Info("index dropped and recreated",
			zap.String("previous", ex.Name),
			zap.Duration("took", time.Since(start)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email is the login identifier and must be unique.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(UsersEmailUnique),
		},
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName(UsersNameCI),
		},
	}, logger)
}

func ensurePostings(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	c := db.Collection("postings")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Owner-scoped listings, ordered by creation (_id).
		{
			Keys:    bson.D{{Key: "owner_email", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName(PostingsOwnerCreated),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName(PostingsKind),
		},
	}, logger)
}

func ensureAudit(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	c := db.Collection("audit_events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName(AuditTimestamp),
		},
		{
			Keys:    bson.D{{Key: "user_email", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName(AuditUserTimestamp),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName(AuditCategoryType),
		},
	}, logger)
}
