package resolvers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/policy/userpolicy"
	userstore "github.com/dalemusser/voluntahub/internal/app/store/users"
	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/inputval"
	"github.com/dalemusser/voluntahub/internal/app/system/normalize"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// CreateUserInput carries the createUser arguments. Role is only honored
// when the caller is an admin.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     *string
}

// public strips fields that must never leave the service.
func public(u models.User) models.User {
	u.PasswordHash = ""
	return u
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalize.Email(email)
	if inputval.AnyBlank(email, password) {
		return nil, apperr.ErrMissingFields
	}

	if s.limiter != nil {
		if ok, reason := s.limiter.Check(ratelimit.ClientIPFrom(ctx), email); !ok {
			s.log.Warn("login throttled", zap.String("email", email), zap.String("reason", reason))
			s.audit.LoginThrottled(ctx, email, reason)
			return nil, apperr.ErrRateLimited
		}
	}

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "login lookup")
	defer cancel()
	u, err := s.users.GetByEmail(sctx, email)
	if err != nil {
		if !isNotFound(err) {
			return nil, s.storeErr("login lookup", err)
		}
		s.passwords.CompareDummy(password)
		s.audit.LoginFailed(ctx, email, false)
		return nil, apperr.ErrInvalidCredentials
	}
	if !s.passwords.Compare(u.PasswordHash, password) {
		s.audit.LoginFailed(ctx, email, true)
		return nil, apperr.ErrInvalidCredentials
	}

	id := auth.IdentityFromUser(*u)
	token, exp, err := s.tokens.Issue(id)
	if err != nil {
		s.log.Error("token issue failed", zap.String("user_id", id.ID), zap.Error(err))
		return nil, apperr.Internal(err)
	}
	id.ExpiresAt = exp

	if s.limiter != nil {
		s.limiter.ResetEmail(email)
	}
	if err := auth.WriteSession(ctx, id); err != nil {
		// The token alone is enough to authenticate, so a cookie failure is not fatal.
		s.log.Warn("session cookie not written", zap.String("user_id", id.ID), zap.Error(err))
	}

	s.audit.LoginSucceeded(ctx, *u)
	s.log.Info("user logged in", zap.String("user_id", id.ID), zap.String("role", string(id.Role)))
	return &LoginResult{Token: token, ExpiresAt: exp, User: public(*u)}, nil
}

// CreateUser registers an account. Anyone may register; only an admin can
// choose the new account's role.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	name := normalize.Name(in.Name)
	email := normalize.Email(in.Email)
	if inputval.AnyBlank(name, email, in.Password) {
		return nil, apperr.ErrMissingFields
	}
	if !inputval.IsValidEmail(email) {
		return nil, apperr.ErrInvalidEmail
	}

	caller := auth.IdentityFrom(ctx)
	if err := userpolicy.CanCreate(caller); err != nil {
		return nil, deny(ctx, err)
	}

	requested := models.RoleUser
	if in.Role != nil && normalize.Role(*in.Role) != "" {
		r, ok := models.ParseRole(*in.Role)
		if !ok && caller.IsAdmin() {
			return nil, apperr.ErrInvalidRole
		}
		requested = r
	}
	role := userpolicy.EffectiveRole(caller, requested)

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "create user")
	defer cancel()

	exists, err := s.users.EmailExists(sctx, email)
	if err != nil {
		return nil, s.storeErr("email exists", err)
	}
	if exists {
		return nil, apperr.ErrDuplicateEmail
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		s.log.Error("password hash failed", zap.Error(err))
		return nil, apperr.Internal(err)
	}

	u, err := s.users.Create(sctx, models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			return nil, apperr.ErrDuplicateEmail
		}
		return nil, s.storeErr("create user", err)
	}

	s.log.Info("user created", zap.String("user_id", u.ID.Hex()), zap.String("role", string(u.Role)))
	s.audit.UserCreated(ctx, caller, u)
	out := public(u)
	return &out, nil
}

// ListUsers returns every account in creation order. Admin only.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := userpolicy.CanList(auth.IdentityFrom(ctx)); err != nil {
		return nil, deny(ctx, err)
	}
	return s.snapshotUsers(ctx)
}

// GetUserByEmail returns the account with email, or nil when there is none.
// Admins may look up anyone; users only themselves.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, apperr.ErrMissingFields
	}
	if err := userpolicy.CanGetByEmail(auth.IdentityFrom(ctx), email); err != nil {
		return nil, deny(ctx, err)
	}

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "get user by email")
	defer cancel()
	u, err := s.users.GetByEmail(sctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, s.storeErr("get user by email", err)
	}
	out := public(*u)
	return &out, nil
}

// DeleteUserByEmail removes the account with email and reports whether one
// existed. Admin only.
func (s *Service) DeleteUserByEmail(ctx context.Context, email string) (bool, error) {
	email = normalize.Email(email)
	if email == "" {
		return false, apperr.ErrMissingFields
	}
	caller := auth.IdentityFrom(ctx)
	if err := userpolicy.CanDelete(caller); err != nil {
		return false, deny(ctx, err)
	}

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "delete user by email")
	defer cancel()
	n, err := s.users.DeleteByEmail(sctx, email)
	if err != nil {
		return false, s.storeErr("delete user by email", err)
	}
	if n > 0 {
		s.log.Info("user deleted", zap.String("email", email), zap.String("by", caller.ID))
		s.audit.UserDeleted(ctx, caller, "", email)
	}
	return n > 0, nil
}

// DeleteUserByIndex removes the user at position index of the full user
// listing and returns its id. Admin only.
//
// The listing is read and then the chosen user is deleted by id; the two
// steps are not atomic, so a concurrent change can shift positions between
// them. If the chosen user is gone by the time of the delete, NotFound is
// returned.
func (s *Service) DeleteUserByIndex(ctx context.Context, index int) (string, error) {
	if index < 0 {
		return "", apperr.ErrIndexOutOfRange
	}
	caller := auth.IdentityFrom(ctx)
	if err := userpolicy.CanDelete(caller); err != nil {
		return "", deny(ctx, err)
	}

	list, err := s.snapshotUsers(ctx)
	if err != nil {
		return "", err
	}
	if err := checkIndex(index, len(list)); err != nil {
		return "", err
	}
	target := list[index]

	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), s.log, "delete user by index")
	defer cancel()
	n, err := s.users.DeleteByID(sctx, target.ID)
	if err != nil {
		return "", s.storeErr("delete user by id", err)
	}
	if n == 0 {
		return "", apperr.ErrNotFound
	}

	s.log.Info("user deleted", zap.String("user_id", target.ID.Hex()), zap.Int("index", index), zap.String("by", caller.ID))
	s.audit.UserDeleted(ctx, caller, target.ID.Hex(), target.Email)
	return target.ID.Hex(), nil
}

func (s *Service) snapshotUsers(ctx context.Context) ([]models.User, error) {
	sctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.log, "list users")
	defer cancel()
	list, err := s.users.List(sctx)
	if err != nil {
		return nil, s.storeErr("list users", err)
	}
	for i := range list {
		list[i] = public(list[i])
	}
	return list, nil
}
