// Package resolvers implements every query and mutation the API exposes.
//
// Each operation follows the same steps: validate input, read the caller
// from the context, apply the policy, call the store, notify on posting
// changes, and return a result that never carries a password hash.
// All returned errors are *apperr.Error; store failures are logged and
// reported as apperr.InternalError.
package resolvers

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/authz"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// UserStore is the persistence the user operations need.
// Lookups return mongo.ErrNoDocuments when nothing matches.
type UserStore interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	DeleteByEmail(ctx context.Context, email string) (int64, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// PostingStore is the persistence the posting operations need.
// Lookups and updates return mongo.ErrNoDocuments when nothing matches.
type PostingStore interface {
	Create(ctx context.Context, p models.Posting) (models.Posting, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Posting, error)
	List(ctx context.Context, owner string) ([]models.Posting, error)
	Update(ctx context.Context, id primitive.ObjectID, patch models.PostingPatch) (*models.Posting, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
	CompareDummy(password string) bool
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

// Notifier publishes posting events. It must not block for long and never
// reports failure.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any, owners ...string)
}

// LoginLimiter throttles login attempts.
type LoginLimiter interface {
	Check(ip, email string) (bool, string)
	ResetEmail(email string)
}

// Auditor records security-relevant events. Implementations must not fail
// the operation being audited.
type Auditor interface {
	LoginSucceeded(ctx context.Context, u models.User)
	LoginFailed(ctx context.Context, email string, knownUser bool)
	LoginThrottled(ctx context.Context, email, limitType string)
	UserCreated(ctx context.Context, actor *auth.Identity, u models.User)
	UserDeleted(ctx context.Context, actor *auth.Identity, userID, email string)
	PostingDeleted(ctx context.Context, actor *auth.Identity, p models.Posting)
}

// Deps are the capabilities a Service is built from. Limiter, Audit and
// AuditReader may be nil.
type Deps struct {
	Users       UserStore
	Postings    PostingStore
	Passwords   PasswordHasher
	Tokens      TokenIssuer
	Notifier    Notifier
	Limiter     LoginLimiter
	Audit       Auditor
	AuditReader AuditReader
	Log         *zap.Logger
}

// Service implements the resolver operations.
type Service struct {
	users     UserStore
	postings  PostingStore
	passwords PasswordHasher
	tokens    TokenIssuer
	notifier  Notifier
	limiter   LoginLimiter
	audit     Auditor
	log       *zap.Logger

	auditReader AuditReader
}

// New builds a Service from d.
func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Audit == nil {
		d.Audit = nopAuditor{}
	}
	return &Service{
		users:     d.Users,
		postings:  d.Postings,
		passwords: d.Passwords,
		tokens:    d.Tokens,
		notifier:  d.Notifier,
		limiter:   d.Limiter,
		audit:     d.Audit,
		log:       log,

		auditReader: d.AuditReader,
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any, ...string) {}

type nopAuditor struct{}

func (nopAuditor) LoginSucceeded(context.Context, models.User)                    {}
func (nopAuditor) LoginFailed(context.Context, string, bool)                      {}
func (nopAuditor) LoginThrottled(context.Context, string, string)                 {}
func (nopAuditor) UserCreated(context.Context, *auth.Identity, models.User)       {}
func (nopAuditor) UserDeleted(context.Context, *auth.Identity, string, string)    {}
func (nopAuditor) PostingDeleted(context.Context, *auth.Identity, models.Posting) {}

// deny converts a policy decision into the error returned to the caller.
func deny(ctx context.Context, err error) error {
	return authz.Explain(ctx, err)
}

// requireCaller returns the caller or the Unauthorized error for this request.
func requireCaller(ctx context.Context) (*auth.Identity, error) {
	id, ok := authz.UserCtx(ctx)
	if !ok {
		return nil, deny(ctx, apperr.ErrUnauthorized)
	}
	return id, nil
}

// storeErr logs a store failure and hides it behind InternalError.
func (s *Service) storeErr(op string, err error) error {
	s.log.Error("store operation failed", zap.String("op", op), zap.Error(err))
	return apperr.Internal(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// parseID turns a client-supplied id into an ObjectID. Malformed ids cannot
// name anything, so they are reported as NotFound.
func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperr.ErrNotFound
	}
	return oid, nil
}

// checkIndex rejects an index outside [0, n).
func checkIndex(index, n int) error {
	if index < 0 || index >= n {
		return apperr.ErrIndexOutOfRange
	}
	return nil
}
