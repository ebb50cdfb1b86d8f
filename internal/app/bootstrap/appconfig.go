// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - Request body size limits
//
// AppConfig is where everything specific to VoluntaHub lives: the store,
// session and token secrets, the realtime broker, and the admin bootstrap.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: voluntahub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Bearer tokens
	JWTSecret string        // HMAC secret for signing tokens
	JWTTTL    time.Duration // Token lifetime; also the cookie session lifetime

	BcryptCost int

	// Browser origins allowed to call the API and open realtime connections.
	// Empty allows any origin.
	CORSAllowedOrigins []string

	// Realtime broker: "memory" (single instance), "redis", or "amqp".
	BrokerType         string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisChannelPrefix string
	AMQPURL            string
	AMQPExchange       string

	RealtimeSweepInterval time.Duration

	// Login throttling; zero disables a dimension's limit.
	LoginIPLimit    int
	LoginEmailLimit int

	// Audit destinations per category: "all", "db", "log", or "off"
	AuditAuth  string
	AuditAdmin string

	// Admin bootstrap (creates or promotes on startup when AdminEmail is set)
	AdminEmail    string
	AdminName     string
	AdminPassword string
}
