package auditlog_test

import (
	"testing"

	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	"github.com/dalemusser/voluntahub/internal/app/system/auditlog"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"github.com/dalemusser/voluntahub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSucceeded(ctx, models.User{ID: primitive.NewObjectID()})
	logger.Logout(ctx, &auth.Identity{ID: "x"})
}

func TestLogger_LogOnly_NoStore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: auditlog.ToAll})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ctx = ratelimit.WithClientIP(ctx, "203.0.113.9")
	logger.LoginFailed(ctx, "ana@example.com", true)

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 zap entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != audit.EventLoginFailedWrongPassword {
		t.Errorf("event_type: got %v", fields["event_type"])
	}
	if fields["ip"] != "203.0.113.9" {
		t.Errorf("ip: got %v", fields["ip"])
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("failed events should log at warn, got %v", entries[0].Level)
	}
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		setting string
		wantDB  int
		wantLog int
	}{
		{auditlog.Off, 0, 0},
		{auditlog.ToDB, 1, 0},
		{auditlog.ToLog, 0, 1},
		{auditlog.ToAll, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := audit.New(db)
			core, logs := observer.New(zapcore.InfoLevel)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := auditlog.New(store, zap.New(core), auditlog.Config{Auth: tt.setting, Admin: tt.setting})
			logger.LoginSucceeded(ctx, models.User{ID: primitive.NewObjectID(), Email: "ana@example.com", Role: models.RoleUser})

			events, err := store.Query(ctx, audit.QueryFilter{UserEmail: "ana@example.com", Limit: 10})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(events) != tt.wantDB {
				t.Errorf("db events: got %d, want %d", len(events), tt.wantDB)
			}
			if n := logs.FilterMessage("audit event").Len(); n != tt.wantLog {
				t.Errorf("zap entries: got %d, want %d", n, tt.wantLog)
			}
		})
	}
}

func TestLogger_AdminEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: auditlog.Off, Admin: auditlog.ToDB})
	admin := &auth.Identity{ID: primitive.NewObjectID().Hex(), Email: "admin@example.com", Role: models.RoleAdmin}

	created := models.User{ID: primitive.NewObjectID(), Email: "ana@example.com", Role: models.RoleUser}
	logger.UserCreated(ctx, nil, created)
	logger.UserDeleted(ctx, admin, created.ID.Hex(), created.Email)
	logger.PostingDeleted(ctx, admin, models.Posting{
		ID:         primitive.NewObjectID(),
		Title:      "Reparto de comida",
		OwnerEmail: "ana@example.com",
		Kind:       models.KindOffer,
	})
	// Auth events are off.
	logger.LoginFailed(ctx, "ana@example.com", false)

	events, err := store.Query(ctx, audit.QueryFilter{UserEmail: "ana@example.com", Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 admin events, got %d", len(events))
	}

	byType := map[string]audit.Event{}
	for _, e := range events {
		byType[e.EventType] = e
	}
	if e := byType[audit.EventUserCreated]; e.ActorEmail != "" {
		t.Errorf("self-registration should have no actor, got %q", e.ActorEmail)
	}
	if e := byType[audit.EventUserDeleted]; e.ActorEmail != "admin@example.com" || e.UserID != created.ID.Hex() {
		t.Errorf("user_deleted: got %+v", e)
	}
	if e := byType[audit.EventPostingDeleted]; e.Details["by_owner"] != "false" || e.Details["kind"] != "OFFER" {
		t.Errorf("posting_deleted details: got %v", e.Details)
	}
}

func TestValidDestination(t *testing.T) {
	for _, s := range []string{"all", "db", "log", "off"} {
		if !auditlog.ValidDestination(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "ALL", "file"} {
		if auditlog.ValidDestination(s) {
			t.Errorf("%q should be invalid", s)
		}
	}
}
