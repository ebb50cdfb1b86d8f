// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	graphqlfeature "github.com/dalemusser/voluntahub/internal/app/features/graphql"
	healthfeature "github.com/dalemusser/voluntahub/internal/app/features/health"
	logoutfeature "github.com/dalemusser/voluntahub/internal/app/features/logout"
	realtimefeature "github.com/dalemusser/voluntahub/internal/app/features/realtime"
	"github.com/dalemusser/voluntahub/internal/app/resolvers"
	"github.com/dalemusser/voluntahub/internal/app/store/audit"
	postingstore "github.com/dalemusser/voluntahub/internal/app/store/postings"
	userstore "github.com/dalemusser/voluntahub/internal/app/store/users"
	"github.com/dalemusser/voluntahub/internal/app/system/auditlog"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/notify"
	"github.com/dalemusser/voluntahub/internal/app/system/origins"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// VoluntaHub builds the resolver service from the stores, token issuer,
// notifier and audit log, then mounts the GraphQL endpoint, the realtime
// WebSocket endpoint, logout, and the health check.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := auth.NewTokenIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	hasher, err := auth.NewHasher(appCfg.BcryptCost)
	if err != nil {
		logger.Error("password hasher init failed", zap.Error(err))
		return nil, err
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.JWTTTL, secure, tokens, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.TrustOrigins(appCfg.CORSAllowedOrigins)
	allowedOrigins := browserOrigins(appCfg.CORSAllowedOrigins, secure)

	auditStore := audit.New(deps.MongoDatabase)
	auditLog := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:  appCfg.AuditAuth,
		Admin: appCfg.AuditAdmin,
	})

	svc := resolvers.New(resolvers.Deps{
		Users:     userstore.New(deps.MongoDatabase),
		Postings:  postingstore.New(deps.MongoDatabase),
		Passwords: hasher,
		Tokens:    tokens,
		Notifier:  notify.New(deps.Broker, logger),
		Limiter:   deps.LoginLimiter,
		Audit:     auditLog,
		Log:       logger,

		AuditReader: auditStore,
	})

	r := chi.NewRouter()

	// With no origins configured in production, only same-origin browser
	// clients are served and no CORS headers are sent.
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(corsOptions(allowedOrigins)))
	}

	// Global auth middleware: resolves the caller from a bearer token or
	// the cookie session and stores it in the request context.
	r.Use(sessionMgr.LoadIdentity)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Broker, deps.Hub, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	gqlHandler, err := graphqlfeature.NewHandler(svc, sessionMgr, logger)
	if err != nil {
		logger.Error("graphql schema init failed", zap.Error(err))
		return nil, err
	}
	r.Mount("/graphql", graphqlfeature.Routes(gqlHandler))

	rtHandler := realtimefeature.NewHandler(deps.Broker, deps.Hub, sessionMgr, allowedOrigins, logger)
	r.Mount("/realtime", realtimefeature.Routes(rtHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLog, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	return r, nil
}

// browserOrigins returns the cross-origin frontends to serve. Outside
// production an empty list means any origin, so local frontends on other
// ports work without configuration. In production it stays empty.
func browserOrigins(configured []string, prod bool) []string {
	if !origins.New(configured).Empty() {
		return configured
	}
	if prod {
		return nil
	}
	return []string{origins.Wildcard}
}

// corsOptions allows credentials so listed browser clients can use the
// cookie session. Cookies from other origins are still ignored by the
// session manager.
func corsOptions(allowed []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}
