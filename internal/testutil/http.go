package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID    string
	Name  string
	Email string
	Role  models.Role
}

// Identity converts the test user to a request identity.
func (u TestUser) Identity() *auth.Identity {
	return &auth.Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// AdminUser returns a TestUser with the ADMIN role.
func AdminUser() TestUser {
	return TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test Admin",
		Email: "admin@test.com",
		Role:  models.RoleAdmin,
	}
}

// RegularUser returns a TestUser with the USER role.
func RegularUser(email string) TestUser {
	return TestUser{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "Test User",
		Email: email,
		Role:  models.RoleUser,
	}
}

// WithUser attaches the user's identity to the request context.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), user.Identity()))
}

// NewRequest creates a new HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates a request carrying the user's identity.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(NewRequest(method, target), user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with assertion helpers.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("expected status %d, got %d", expected, r.Code)
	}
}

// AssertContains checks that the response body contains expected.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("expected body to contain %q, got %q", expected, r.Body.String())
	}
}
