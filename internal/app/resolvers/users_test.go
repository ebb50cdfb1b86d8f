package resolvers

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dalemusser/voluntahub/internal/app/system/apperr"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

func TestCreateUserThenLogin(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	u, err := h.svc.CreateUser(ctx, CreateUserInput{Name: " Ana ", Email: "Ana@Example.com", Password: "s3cret"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Email != "ana@example.com" || u.Name != "Ana" {
		t.Errorf("stored identity not normalized: %+v", u)
	}
	if u.PasswordHash != "" {
		t.Error("CreateUser must not return the password hash")
	}
	if u.Role != models.RoleUser {
		t.Errorf("Role: got %q, want USER", u.Role)
	}

	res, err := h.svc.Login(ctx, "ANA@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.ExpiresAt.IsZero() {
		t.Errorf("Login returned empty token: %+v", res)
	}
	if res.User.PasswordHash != "" {
		t.Error("Login must not return the password hash")
	}

	_, err = h.svc.CreateUser(ctx, CreateUserInput{Name: "Other", Email: "ana@EXAMPLE.com", Password: "x"})
	if !errors.Is(err, apperr.ErrDuplicateEmail) {
		t.Errorf("second CreateUser: got %v, want DuplicateEmail", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateUserInput
		want error
	}{
		{"missing name", CreateUserInput{Email: "a@b.com", Password: "x"}, apperr.ErrMissingFields},
		{"blank email", CreateUserInput{Name: "A", Email: "  ", Password: "x"}, apperr.ErrMissingFields},
		{"missing password", CreateUserInput{Name: "A", Email: "a@b.com"}, apperr.ErrMissingFields},
		{"bad email", CreateUserInput{Name: "A", Email: "not-an-email", Password: "x"}, apperr.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.svc.CreateUser(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if len(h.users.users) != 0 {
				t.Error("store should be unchanged")
			}
		})
	}
}

func TestCreateUser_RoleSelection(t *testing.T) {
	h := newHarness()
	admin := h.seedUser("Admin", "admin@example.com", "pw", models.RoleAdmin)
	user := h.seedUser("User", "user@example.com", "pw", models.RoleUser)

	tests := []struct {
		name     string
		ctx      context.Context
		email    string
		role     *string
		wantRole models.Role
		wantErr  error
	}{
		{"anonymous asks for admin", context.Background(), "a1@example.com", strp("ADMIN"), models.RoleUser, nil},
		{"user asks for admin", as(user), "a2@example.com", strp("admin"), models.RoleUser, nil},
		{"user sends junk role", as(user), "a3@example.com", strp("ROOT"), models.RoleUser, nil},
		{"admin grants admin", as(admin), "a4@example.com", strp("admin"), models.RoleAdmin, nil},
		{"admin default", as(admin), "a5@example.com", nil, models.RoleUser, nil},
		{"admin sends junk role", as(admin), "a6@example.com", strp("ROOT"), "", apperr.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := h.svc.CreateUser(tt.ctx, CreateUserInput{Name: "N", Email: tt.email, Password: "pw", Role: tt.role})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateUser: %v", err)
			}
			if u.Role != tt.wantRole {
				t.Errorf("Role: got %q, want %q", u.Role, tt.wantRole)
			}
		})
	}
}

func TestCreateUser_StoreFailureIsInternal(t *testing.T) {
	h := newHarness()
	h.users.failErr = errors.New("connection reset")

	_, err := h.svc.CreateUser(context.Background(), CreateUserInput{Name: "A", Email: "a@b.com", Password: "x"})
	if apperr.CodeOf(err) != apperr.InternalError {
		t.Fatalf("got %v, want InternalError", err)
	}
	if err.Error() != "internal error" {
		t.Errorf("cause leaked into message: %q", err.Error())
	}
}

func TestLogin_SameErrorForUnknownEmailAndWrongPassword(t *testing.T) {
	h := newHarness()
	h.seedUser("Real", "real@x.com", "rightpass", models.RoleUser)
	ctx := context.Background()

	_, errUnknown := h.svc.Login(ctx, "nonexistent@x.com", "whatever")
	_, errWrong := h.svc.Login(ctx, "real@x.com", "wrongpass")

	if !errors.Is(errUnknown, apperr.ErrInvalidCredentials) || !errors.Is(errWrong, apperr.ErrInvalidCredentials) {
		t.Fatalf("want InvalidCredentials for both, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown.Error(), errWrong.Error())
	}
	if h.hasher.dummyCalls != 1 {
		t.Errorf("unknown email should still run a dummy comparison, got %d", h.hasher.dummyCalls)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h := newHarness()
	if _, err := h.svc.Login(context.Background(), "", "pw"); !errors.Is(err, apperr.ErrMissingFields) {
		t.Errorf("got %v, want MissingFields", err)
	}
}

func TestLogin_WritesSession(t *testing.T) {
	h := newHarness()
	h.seedUser("Ana", "ana@example.com", "pw", models.RoleAdmin)

	var written *auth.Identity
	ctx := auth.WithSessionWriter(context.Background(), func(id auth.Identity) error {
		written = &id
		return nil
	})
	if _, err := h.svc.Login(ctx, "ana@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if written == nil {
		t.Fatal("session writer not called")
	}
	if written.Email != "ana@example.com" || written.Role != models.RoleAdmin || written.ExpiresAt.IsZero() {
		t.Errorf("unexpected session identity: %+v", written)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	h := newHarness()
	h.seedUser("Ana", "ana@example.com", "pw", models.RoleUser)
	lim := &fakeLimiter{allow: false}
	h.svc.limiter = lim

	ctx := ratelimit.WithClientIP(context.Background(), "10.0.0.7")
	_, err := h.svc.Login(ctx, "ana@example.com", "pw")
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("got %v, want RateLimited", err)
	}
	if lim.seenIP != "10.0.0.7" {
		t.Errorf("limiter saw IP %q", lim.seenIP)
	}

	lim.allow = true
	if _, err := h.svc.Login(ctx, "ana@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(lim.resets) != 1 || lim.resets[0] != "ana@example.com" {
		t.Errorf("successful login should reset the email counter, got %v", lim.resets)
	}
}

func TestLogin_AuditsEachOutcome(t *testing.T) {
	h := newHarness()
	h.seedUser("Ana", "ana@example.com", "pw", models.RoleUser)
	ctx := context.Background()

	_, _ = h.svc.Login(ctx, "ghost@example.com", "pw")
	_, _ = h.svc.Login(ctx, "ana@example.com", "nope")
	if _, err := h.svc.Login(ctx, "ANA@example.com", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	h.svc.limiter = &fakeLimiter{allow: false}
	_, _ = h.svc.Login(ctx, "ana@example.com", "pw")

	want := []string{
		"login_unknown_user:ghost@example.com",
		"login_wrong_password:ana@example.com",
		"login_success:ana@example.com",
		"login_throttled:ana@example.com",
	}
	if got := h.audits.all(); !reflect.DeepEqual(got, want) {
		t.Errorf("audit trail:\n got %v\nwant %v", got, want)
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	h := newHarness()
	admin := h.seedUser("Admin", "admin@example.com", "pw", models.RoleAdmin)
	user := h.seedUser("User", "user@example.com", "pw", models.RoleUser)

	if _, err := h.svc.ListUsers(context.Background()); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("anonymous: got %v, want Unauthorized", err)
	}
	if _, err := h.svc.ListUsers(as(user)); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("user: got %v, want Forbidden", err)
	}

	list, err := h.svc.ListUsers(as(admin))
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d users, want 2", len(list))
	}
	for _, u := range list {
		if u.PasswordHash != "" {
			t.Errorf("listing exposed hash for %s", u.Email)
		}
	}
}

func TestUnauthorizedMessageWhenTokenRejected(t *testing.T) {
	h := newHarness()
	ctx := auth.WithTokenRejected(context.Background())

	_, err := h.svc.ListUsers(ctx)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("got %v, want Unauthorized", err)
	}
	if err.Error() != apperr.ErrTokenRejected.Message {
		t.Errorf("message: got %q, want %q", err.Error(), apperr.ErrTokenRejected.Message)
	}
}

func TestGetUserByEmail(t *testing.T) {
	h := newHarness()
	admin := h.seedUser("Admin", "admin@example.com", "pw", models.RoleAdmin)
	user := h.seedUser("User", "user@example.com", "pw", models.RoleUser)

	got, err := h.svc.GetUserByEmail(as(user), "USER@example.com")
	if err != nil || got == nil || got.Email != "user@example.com" {
		t.Fatalf("own lookup: got %+v, %v", got, err)
	}
	if got.PasswordHash != "" {
		t.Error("hash returned")
	}
	if _, err := h.svc.GetUserByEmail(as(user), "admin@example.com"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("other lookup: got %v, want Forbidden", err)
	}
	missing, err := h.svc.GetUserByEmail(as(admin), "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("missing user: got %+v, %v; want nil, nil", missing, err)
	}
}

func TestDeleteUserByEmail(t *testing.T) {
	h := newHarness()
	admin := h.seedUser("Admin", "admin@example.com", "pw", models.RoleAdmin)
	user := h.seedUser("User", "user@example.com", "pw", models.RoleUser)

	if _, err := h.svc.DeleteUserByEmail(as(user), "admin@example.com"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("user: got %v, want Forbidden", err)
	}

	ok, err := h.svc.DeleteUserByEmail(as(admin), "User@Example.com")
	if err != nil || !ok {
		t.Fatalf("first delete: got %v, %v", ok, err)
	}
	ok, err = h.svc.DeleteUserByEmail(as(admin), "user@example.com")
	if err != nil || ok {
		t.Errorf("second delete: got %v, %v; want false, nil", ok, err)
	}
	if got := h.audits.all(); len(got) != 1 || got[0] != "user_deleted:user@example.com" {
		t.Errorf("only the effective delete is audited, got %v", got)
	}
}

func TestDeleteUserByIndex(t *testing.T) {
	h := newHarness()
	admin := h.seedUser("Admin", "admin@example.com", "pw", models.RoleAdmin)
	second := h.seedUser("Second", "second@example.com", "pw", models.RoleUser)
	h.seedUser("Third", "third@example.com", "pw", models.RoleUser)

	for _, idx := range []int{-1, 3, 10} {
		if _, err := h.svc.DeleteUserByIndex(as(admin), idx); !errors.Is(err, apperr.ErrIndexOutOfRange) {
			t.Errorf("index %d: got %v, want IndexOutOfRange", idx, err)
		}
	}

	id, err := h.svc.DeleteUserByIndex(as(admin), 1)
	if err != nil {
		t.Fatalf("DeleteUserByIndex: %v", err)
	}
	if id != second.ID.Hex() {
		t.Errorf("deleted %s, want %s", id, second.ID.Hex())
	}
	if len(h.users.users) != 2 {
		t.Errorf("got %d users left, want 2", len(h.users.users))
	}

	if _, err := h.svc.DeleteUserByIndex(as(second), 0); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("non-admin: got %v, want Forbidden", err)
	}
}

func TestDeleteUserByIndex_EmptyListing(t *testing.T) {
	h := newHarness()
	id := auth.Identity{ID: "000000000000000000000001", Email: "ghost@example.com", Role: models.RoleAdmin}
	ctx := auth.WithIdentity(context.Background(), &id)

	if _, err := h.svc.DeleteUserByIndex(ctx, 0); !errors.Is(err, apperr.ErrIndexOutOfRange) {
		t.Errorf("got %v, want IndexOutOfRange", err)
	}
}
