package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/dalemusser/voluntahub/internal/app/system/origins"
	"github.com/dalemusser/voluntahub/internal/domain/models"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "voluntahub-session"

	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	userNameKey  = "user_name"
	userEmailKey = "user_email"
	userRoleKey  = "user_role"
	expiresKey   = "expires_at"
)

// TokenVerifier validates a bearer token. *TokenIssuer implements it.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// SessionManager resolves the caller identity for each request, from a
// bearer token first and from the cookie session second.
type SessionManager struct {
	store  *sessions.CookieStore
	name   string
	maxAge time.Duration
	tokens TokenVerifier
	log    *zap.Logger
	now    func() time.Time

	// trusted lists the cross-origin frontends that may use the cookie.
	trusted origins.Allowlist
}

// NewSessionManager creates a cookie-backed session manager.
//
// In production (secure=true), cookies are Secure + SameSite=None so a
// browser frontend on another origin can send them over HTTPS. In local dev
// over http://localhost, use secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, tokens TokenVerifier, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = DefaultSessionName
	}
	if maxAge <= 0 {
		maxAge = DefaultTokenTTL
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{
		store:  store,
		name:   name,
		maxAge: maxAge,
		tokens: tokens,
		log:    logger,
		now:    time.Now,
	}, nil
}

// TrustOrigins sets the browser origins, besides the server's own host,
// whose requests may authenticate with the cookie session. A wildcard entry
// is ignored here; such frontends must send a bearer token.
func (sm *SessionManager) TrustOrigins(list []string) {
	sm.trusted = origins.New(list)
}

// cookieAllowed reports whether r may use the cookie session. Requests
// without an Origin header are not cross-site browser requests.
func (sm *SessionManager) cookieAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origins.SameHost(r) || sm.trusted.Lists(origin)
}

// BearerToken extracts the token from an "Authorization: Bearer <t>" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Resolve determines the caller for r. If token is non-empty it must verify;
// a rejected token yields (nil, true) and the cookie session is not consulted.
// With no token the cookie session is used, unless the request comes from a
// browser origin that is neither this host nor trusted.
func (sm *SessionManager) Resolve(r *http.Request, token string) (id *Identity, rejected bool) {
	if token != "" {
		if sm.tokens == nil {
			return nil, true
		}
		id, err := sm.tokens.Verify(token)
		if err != nil {
			sm.log.Debug("bearer token rejected", zap.Error(err))
			return nil, true
		}
		return id, false
	}
	if !sm.cookieAllowed(r) {
		sm.log.Debug("ignoring session cookie from untrusted origin",
			zap.String("origin", r.Header.Get("Origin")))
		return nil, false
	}
	return sm.sessionIdentity(r), false
}

// LoadIdentity is middleware that places the caller identity (if any) on the
// request context. It never rejects a request; resolvers decide.
func (sm *SessionManager) LoadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, rejected := sm.Resolve(r, BearerToken(r))
		ctx := r.Context()
		if rejected {
			ctx = WithTokenRejected(ctx)
		}
		ctx = WithIdentity(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (sm *SessionManager) sessionIdentity(r *http.Request) *Identity {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var cerr securecookie.Error
		if errors.As(err, &cerr) && cerr.IsDecode() {
			sm.log.Debug("ignoring undecodable session cookie", zap.Error(err))
		} else {
			sm.log.Warn("session lookup failed", zap.Error(err))
		}
		return nil
	}
	if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
		return nil
	}

	role, ok := models.ParseRole(getString(sess, userRoleKey))
	if !ok {
		return nil
	}
	id := &Identity{
		ID:    getString(sess, userIDKey),
		Name:  getString(sess, userNameKey),
		Email: getString(sess, userEmailKey),
		Role:  role,
	}
	if exp, ok := sess.Values[expiresKey].(int64); ok {
		id.ExpiresAt = time.Unix(exp, 0)
	}
	if id.ID == "" || id.Email == "" || id.Expired(sm.now()) {
		return nil
	}
	return id
}

// Save writes id into the cookie session.
func (sm *SessionManager) Save(w http.ResponseWriter, r *http.Request, id Identity) error {
	sess, _ := sm.store.Get(r, sm.name)
	exp := id.ExpiresAt
	if exp.IsZero() {
		exp = sm.now().Add(sm.maxAge)
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = id.ID
	sess.Values[userNameKey] = id.Name
	sess.Values[userEmailKey] = id.Email
	sess.Values[userRoleKey] = string(id.Role)
	sess.Values[expiresKey] = exp.Unix()
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the cookie session.
func (sm *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Writer returns a SessionWriter bound to a single request/response pair.
func (sm *SessionManager) Writer(w http.ResponseWriter, r *http.Request) SessionWriter {
	return func(id Identity) error { return sm.Save(w, r, id) }
}

// WithRequestWriter is a convenience that attaches sm.Writer(w, r) to ctx.
func (sm *SessionManager) WithRequestWriter(ctx context.Context, w http.ResponseWriter, r *http.Request) context.Context {
	return WithSessionWriter(ctx, sm.Writer(w, r))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
