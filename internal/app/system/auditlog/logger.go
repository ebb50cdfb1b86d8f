// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"go.uber.org/zap"
)

// Destinations accepted by Config fields.
const (
	ToAll = "all" // MongoDB + zap
	ToDB  = "db"  // MongoDB only
	ToLog = "log" // zap only
	Off   = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout).
	Auth string
	// Admin controls logging for account and content removal events.
	Admin string
}

// ValidDestination reports whether s is one of the accepted Config values.
func ValidDestination(s string) bool {
	switch s {
	case ToAll, ToDB, ToLog, Off:
		return true
	}
	return false
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
// The client IP is read from the context (ratelimit.WithClientIP).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case "db"
// destinations are skipped.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.UserEmail != "" {
		fields = append(fields, zap.String("user_email", event.UserEmail))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	if event.IP == "" {
		event.IP = ratelimit.ClientIPFrom(ctx)
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = ToAll
	}

	if setting == Off || setting == "" {
		return
	}
	if setting == ToAll || setting == ToLog {
		l.logToZap(event)
	}
	if (setting == ToAll || setting == ToDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSucceeded logs a successful login.
func (l *Logger) LoginSucceeded(ctx context.Context, u models.User) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    u.ID.Hex(),
		UserEmail: u.Email,
		Success:   true,
		Details:   map[string]string{"role": string(u.Role)},
	})
}

// LoginFailed logs a failed login. knownUser distinguishes a wrong password
// from an unknown email; the caller never sees the difference.
func (l *Logger) LoginFailed(ctx context.Context, email string, knownUser bool) {
	event := audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		UserEmail:     email,
		Success:       false,
		FailureReason: "user not found",
	}
	if knownUser {
		event.EventType = audit.EventLoginFailedWrongPassword
		event.FailureReason = "wrong password"
	}
	l.Log(ctx, event)
}

// LoginThrottled logs a login rejected by rate limiting.
func (l *Logger) LoginThrottled(ctx context.Context, email, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		UserEmail:     email,
		Success:       false,
		FailureReason: "rate limit exceeded",
		Details:       map[string]string{"limit_type": limitType},
	})
}

// Logout logs a cookie session being cleared.
func (l *Logger) Logout(ctx context.Context, id *auth.Identity) {
	if id == nil {
		return
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    id.ID,
		UserEmail: id.Email,
		Success:   true,
	})
}

// --- Admin Events ---

// UserCreated logs a new account. actor is nil for self-registration.
func (l *Logger) UserCreated(ctx context.Context, actor *auth.Identity, u models.User) {
	event := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserCreated,
		UserID:    u.ID.Hex(),
		UserEmail: u.Email,
		Success:   true,
		Details:   map[string]string{"role": string(u.Role)},
	}
	if actor != nil {
		event.ActorID = actor.ID
		event.ActorEmail = actor.Email
	}
	l.Log(ctx, event)
}

// UserDeleted logs an account removal. userID may be empty when the
// account was removed by email.
func (l *Logger) UserDeleted(ctx context.Context, actor *auth.Identity, userID, email string) {
	event := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserDeleted,
		UserID:    userID,
		UserEmail: email,
		Success:   true,
	}
	if actor != nil {
		event.ActorID = actor.ID
		event.ActorEmail = actor.Email
	}
	l.Log(ctx, event)
}

// PostingDeleted logs a posting removal. The affected user is the owner.
func (l *Logger) PostingDeleted(ctx context.Context, actor *auth.Identity, p models.Posting) {
	event := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventPostingDeleted,
		UserEmail: p.OwnerEmail,
		Success:   true,
		Details: map[string]string{
			"posting_id": p.ID.Hex(),
			"title":      p.Title,
			"kind":       string(p.Kind),
			"by_owner":   strconv.FormatBool(actor.Owns(p.OwnerEmail)),
		},
	}
	if actor != nil {
		event.ActorID = actor.ID
		event.ActorEmail = actor.Email
	}
	l.Log(ctx, event)
}
