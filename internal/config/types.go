package config

import "time"

// TransportKind selects how the server accepts MCP connections.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// Config is the fully-resolved, validated configuration for a server
// instance. It is built by Load, which overlays environment variables onto
// Defaults and then runs Validate.
type Config struct {
	Transport TransportConfig
	Session   SessionConfig
	Auth      AuthConfig
	OAuthServer   OAuthServerConfig
	OAuthConsumer OAuthConsumerConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Audit     AuditConfig
	Plugins   PluginsConfig
}

// TransportConfig governs how the server listens for MCP clients.
type TransportConfig struct {
	Kind        TransportKind
	HTTPHost    string
	HTTPPort    int
	CORSEnabled bool
	CORSOrigins []string

	KeepaliveInterval   time.Duration
	EventCleanupInterval time.Duration
	EventKeepLast       int

	RateLimit RateLimitConfig
}

// RateLimitConfig governs the HTTP router's per-client token-bucket
// limiter: RatePerSecond tokens replenish per second up to Burst, one
// bucket per client IP (unauthenticated routes) or per clientId
// (authenticated routes).
type RateLimitConfig struct {
	Enabled       bool
	RatePerSecond float64
	Burst         int
	IdleEvict     time.Duration
}

// SessionConfig governs session lifetime, binding, and limits.
type SessionConfig struct {
	Timeout             time.Duration
	CleanupInterval     time.Duration
	MaxConcurrent       int
	EnablePersistence   bool
	RequestTimeout      time.Duration
	MaxRequestBytes     int64
}

// AuthConfig governs the authentication middleware applied to inbound
// transports.
type AuthConfig struct {
	Enabled bool

	HTTPEnabled  bool
	HTTPSkip     []string
	HTTPRequire  []string

	StdioEnabled    bool
	StdioAllowOAuth bool
	StdioSkip       []string

	SessionBindingEnabled     bool
	SessionBindingAutoRefresh bool
	SessionBindingTimeout     time.Duration

	ErrorIncludeDetails  bool
	ErrorIncludeGuidance bool
	ErrorCustomHeaders   map[string]string
}

// OAuthServerConfig configures the built-in OAuth 2.1 authorization server
// exposed by this framework to MCP clients.
type OAuthServerConfig struct {
	ClientID                string
	ClientSecret            string
	RedirectURI             string
	Issuer                  string
	PKCERequired            bool
	DynamicRegistration     bool
	TokenExpiration         time.Duration
	RefreshTokenExpiration  time.Duration
}

// OAuthConsumerConfig configures the bridge to an upstream third-party
// identity provider (the provider this server authenticates *against*, as
// opposed to the server it *is* for MCP clients).
type OAuthConsumerConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURI  string
	Scopes       []string
}

// StorageConfig locates the persistence backend shared by sessions, events,
// credentials, and OAuth state.
type StorageConfig struct {
	KVPath string
}

// LoggingConfig configures the pkg/logging subsystem.
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// AuditConfig configures the audit trail emitted for security-sensitive
// operations.
type AuditConfig struct {
	Enabled       bool
	LogFile       string
	RetentionDays int
}

// PluginsConfig governs plugin discovery and loading.
type PluginsConfig struct {
	DiscoveryPaths []string
	Autoload       bool
	WatchChanges   bool
	AllowedList    []string
	BlockedList    []string
}
