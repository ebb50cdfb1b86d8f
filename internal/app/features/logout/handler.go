// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/voluntahub/internal/app/system/auditlog"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

// NewHandler builds the logout handler. auditLog may be nil.
func NewHandler(sessionMgr *auth.SessionManager, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   auditLog,
	}
}

// ServeLogout handles POST /logout.
//
// It removes the cookie session and answers 204. Bearer tokens are stateless
// and stay valid until they expire; clients drop them on their side.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	if err := h.SessionMgr.Clear(w, r); err != nil {
		h.Log.Error("logout: clear session", zap.Error(err))
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}
	if id != nil {
		h.Log.Info("user logged out", zap.String("user_id", id.ID))
		h.AuditLog.Logout(ratelimit.WithClientIP(r.Context(), ratelimit.ClientIP(r)), id)
	}
	w.WriteHeader(http.StatusNoContent)
}
