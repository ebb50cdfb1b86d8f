package logout_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/voluntahub/internal/app/features/logout"
	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	"github.com/dalemusser/voluntahub/internal/app/system/auditlog"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sessionMgr
}

func TestServeLogout_NoContent(t *testing.T) {
	handler := logout.NewHandler(newSessionManager(t), nil, zap.NewNop())

	req := httptest.NewRequest("POST", "/logout", nil)
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestServeLogout_ClearsExistingSession(t *testing.T) {
	sessionMgr := newSessionManager(t)
	handler := logout.NewHandler(sessionMgr, nil, zap.NewNop())

	// Log in first so there is a session cookie to clear.
	req1 := httptest.NewRequest("POST", "/graphql", nil)
	rec1 := httptest.NewRecorder()
	id := auth.Identity{ID: "64b7f0c2a1b2c3d4e5f60718", Email: "ana@example.com", Role: models.RoleUser}
	if err := sessionMgr.Save(rec1, req1, id); err != nil {
		t.Fatalf("Save: %v", err)
	}

	req2 := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range rec1.Result().Cookies() {
		req2.AddCookie(c)
	}
	if got, _ := sessionMgr.Resolve(req2, ""); got == nil {
		t.Fatal("session should resolve before logout")
	}
	rec2 := httptest.NewRecorder()

	handler.ServeLogout(rec2, req2)

	found := false
	for _, c := range rec2.Result().Cookies() {
		if c.Name == "test-session" {
			found = true
			if c.MaxAge != -1 {
				t.Errorf("cookie MaxAge after logout: got %d, want -1", c.MaxAge)
			}
		}
	}
	if !found {
		t.Error("expected session cookie to be set for deletion")
	}
}

func TestServeLogout_Audited(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	auditLog := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: auditlog.ToLog})
	handler := logout.NewHandler(newSessionManager(t), auditLog, zap.NewNop())

	id := &auth.Identity{ID: "64b7f0c2a1b2c3d4e5f60718", Email: "ana@example.com", Role: models.RoleUser}
	req := httptest.NewRequest("POST", "/logout", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	req = req.WithContext(auth.WithIdentity(req.Context(), id))
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != audit.EventLogout || fields["user_email"] != "ana@example.com" {
		t.Errorf("unexpected audit fields: %v", fields)
	}
	if fields["ip"] != "198.51.100.4" {
		t.Errorf("ip: got %v", fields["ip"])
	}
}

func TestServeLogout_AnonymousNotAudited(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	auditLog := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: auditlog.ToLog})
	handler := logout.NewHandler(newSessionManager(t), auditLog, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.ServeLogout(rec, httptest.NewRequest("POST", "/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if n := logs.Len(); n != 0 {
		t.Errorf("expected no audit entries, got %d", n)
	}
}
