package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcpkit/mcpserver/pkg/logging"
)

// Load builds a Config by overlaying recognized environment variables onto
// Defaults, then validates the result. It never reads a config file: every
// setting in spec section 6 is an environment variable.
func Load() (Config, error) {
	cfg := Defaults()

	// Transport
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Transport.Kind = TransportKind(v)
	}
	cfg.Transport.HTTPHost = getStringDefault("HTTP_HOST", cfg.Transport.HTTPHost)
	cfg.Transport.HTTPPort = getIntDefault("HTTP_PORT", cfg.Transport.HTTPPort)
	cfg.Transport.CORSEnabled = getBoolDefault("HTTP_CORS_ENABLED", cfg.Transport.CORSEnabled)
	cfg.Transport.CORSOrigins = getListDefault("HTTP_CORS_ORIGINS", cfg.Transport.CORSOrigins)
	cfg.Transport.KeepaliveInterval = getMillisDefault("MCP_SSE_KEEPALIVE_INTERVAL", cfg.Transport.KeepaliveInterval)
	cfg.Transport.EventCleanupInterval = getMillisDefault("MCP_EVENT_CLEANUP_INTERVAL", cfg.Transport.EventCleanupInterval)
	cfg.Transport.EventKeepLast = getIntDefault("MCP_EVENT_KEEP_LAST", cfg.Transport.EventKeepLast)
	cfg.Transport.RateLimit.Enabled = getBoolDefault("HTTP_RATE_LIMIT_ENABLED", cfg.Transport.RateLimit.Enabled)
	cfg.Transport.RateLimit.Burst = getIntDefault("HTTP_RATE_LIMIT_BURST", cfg.Transport.RateLimit.Burst)
	cfg.Transport.RateLimit.IdleEvict = getMillisDefault("HTTP_RATE_LIMIT_IDLE_EVICT", cfg.Transport.RateLimit.IdleEvict)
	if v := os.Getenv("HTTP_RATE_LIMIT_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Transport.RateLimit.RatePerSecond = f
		} else {
			return Config{}, fmt.Errorf("HTTP_RATE_LIMIT_PER_SECOND: %w", err)
		}
	}

	// Session
	cfg.Session.Timeout = getMillisDefault("MCP_SESSION_TIMEOUT", cfg.Session.Timeout)
	cfg.Session.CleanupInterval = getMillisDefault("MCP_SESSION_CLEANUP_INTERVAL", cfg.Session.CleanupInterval)
	cfg.Session.MaxConcurrent = getIntDefault("MCP_MAX_CONCURRENT_SESSIONS", cfg.Session.MaxConcurrent)
	cfg.Session.EnablePersistence = getBoolDefault("MCP_ENABLE_SESSION_PERSISTENCE", cfg.Session.EnablePersistence)
	cfg.Session.RequestTimeout = getMillisDefault("MCP_REQUEST_TIMEOUT", cfg.Session.RequestTimeout)
	if v := os.Getenv("MCP_MAX_REQUEST_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Session.MaxRequestBytes = n
		} else {
			return Config{}, fmt.Errorf("MCP_MAX_REQUEST_SIZE: %w", err)
		}
	}

	// Auth
	cfg.Auth.Enabled = getBoolDefault("MCP_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.HTTPEnabled = getBoolDefault("MCP_AUTH_HTTP_ENABLED", cfg.Auth.HTTPEnabled)
	cfg.Auth.HTTPSkip = getListDefault("MCP_AUTH_HTTP_SKIP", cfg.Auth.HTTPSkip)
	cfg.Auth.HTTPRequire = getListDefault("MCP_AUTH_HTTP_REQUIRE", cfg.Auth.HTTPRequire)
	cfg.Auth.StdioEnabled = getBoolDefault("MCP_AUTH_STDIO_ENABLED", cfg.Auth.StdioEnabled)
	cfg.Auth.StdioAllowOAuth = getBoolDefault("MCP_AUTH_STDIO_ALLOW_OAUTH", cfg.Auth.StdioAllowOAuth)
	cfg.Auth.StdioSkip = getListDefault("MCP_AUTH_STDIO_SKIP", cfg.Auth.StdioSkip)
	cfg.Auth.SessionBindingEnabled = getBoolDefault("MCP_SESSION_BINDING_ENABLED", cfg.Auth.SessionBindingEnabled)
	cfg.Auth.SessionBindingAutoRefresh = getBoolDefault("MCP_SESSION_BINDING_AUTO_REFRESH", cfg.Auth.SessionBindingAutoRefresh)
	cfg.Auth.SessionBindingTimeout = getMillisDefault("MCP_SESSION_BINDING_TIMEOUT_MS", cfg.Auth.SessionBindingTimeout)
	cfg.Auth.ErrorIncludeDetails = getBoolDefault("MCP_AUTH_ERROR_DETAILS", cfg.Auth.ErrorIncludeDetails)
	cfg.Auth.ErrorIncludeGuidance = getBoolDefault("MCP_AUTH_ERROR_GUIDANCE", cfg.Auth.ErrorIncludeGuidance)
	cfg.Auth.ErrorCustomHeaders = parseHeaderList(os.Getenv("MCP_AUTH_ERROR_CUSTOM_HEADERS"))

	// OAuth provider (the authorization server this framework exposes)
	cfg.OAuthServer.ClientID = getStringDefault("OAUTH_PROVIDER_CLIENT_ID", cfg.OAuthServer.ClientID)
	cfg.OAuthServer.ClientSecret = resolveSecret("OAUTH_PROVIDER_CLIENT_SECRET", cfg.OAuthServer.ClientSecret)
	cfg.OAuthServer.RedirectURI = getStringDefault("OAUTH_PROVIDER_REDIRECT_URI", cfg.OAuthServer.RedirectURI)
	cfg.OAuthServer.Issuer = getStringDefault("OAUTH_PROVIDER_ISSUER", cfg.OAuthServer.Issuer)
	cfg.OAuthServer.PKCERequired = getBoolDefault("OAUTH_PROVIDER_PKCE", cfg.OAuthServer.PKCERequired)
	cfg.OAuthServer.DynamicRegistration = getBoolDefault("OAUTH_PROVIDER_DYNAMIC_REGISTRATION", cfg.OAuthServer.DynamicRegistration)
	cfg.OAuthServer.TokenExpiration = getMillisDefault("OAUTH_PROVIDER_TOKEN_EXPIRATION", cfg.OAuthServer.TokenExpiration)
	cfg.OAuthServer.RefreshTokenExpiration = getMillisDefault("OAUTH_PROVIDER_REFRESH_TOKEN_EXPIRATION", cfg.OAuthServer.RefreshTokenExpiration)

	// OAuth consumer (the upstream IdP this framework authenticates against)
	cfg.OAuthConsumer.Provider = getStringDefault("OAUTH_CONSUMER_PROVIDER", cfg.OAuthConsumer.Provider)
	cfg.OAuthConsumer.ClientID = getStringDefault("OAUTH_CONSUMER_CLIENT_ID", cfg.OAuthConsumer.ClientID)
	cfg.OAuthConsumer.ClientSecret = resolveSecret("OAUTH_CONSUMER_CLIENT_SECRET", cfg.OAuthConsumer.ClientSecret)
	cfg.OAuthConsumer.AuthURL = getStringDefault("OAUTH_CONSUMER_AUTH_URL", cfg.OAuthConsumer.AuthURL)
	cfg.OAuthConsumer.TokenURL = getStringDefault("OAUTH_CONSUMER_TOKEN_URL", cfg.OAuthConsumer.TokenURL)
	cfg.OAuthConsumer.RedirectURI = getStringDefault("OAUTH_CONSUMER_REDIRECT_URI", cfg.OAuthConsumer.RedirectURI)
	cfg.OAuthConsumer.Scopes = getListDefault("OAUTH_CONSUMER_SCOPES", cfg.OAuthConsumer.Scopes)

	// Storage / logging / audit
	cfg.Storage.KVPath = getStringDefault("DENO_KV_PATH", cfg.Storage.KVPath)
	cfg.Logging.Level = getStringDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getStringDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.File = getStringDefault("LOG_FILE", cfg.Logging.File)
	cfg.Audit.Enabled = getBoolDefault("AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.LogFile = getStringDefault("AUDIT_LOG_FILE", cfg.Audit.LogFile)
	cfg.Audit.RetentionDays = getIntDefault("AUDIT_RETENTION_DAYS", cfg.Audit.RetentionDays)

	// Plugins
	cfg.Plugins.DiscoveryPaths = getListDefault("PLUGINS_DISCOVERY_PATHS", cfg.Plugins.DiscoveryPaths)
	cfg.Plugins.Autoload = getBoolDefault("PLUGINS_AUTOLOAD", cfg.Plugins.Autoload)
	cfg.Plugins.WatchChanges = getBoolDefault("PLUGINS_WATCH_CHANGES", cfg.Plugins.WatchChanges)
	cfg.Plugins.AllowedList = getListDefault("PLUGINS_ALLOWED_LIST", cfg.Plugins.AllowedList)
	cfg.Plugins.BlockedList = getListDefault("PLUGINS_BLOCKED_LIST", cfg.Plugins.BlockedList)

	if errs := Validate(cfg); errs.HasErrors() {
		return Config{}, errs
	}

	logging.Info("ConfigLoader", "loaded configuration: transport=%s auth=%v session_timeout=%s", cfg.Transport.Kind, cfg.Auth.Enabled, cfg.Session.Timeout)
	return cfg, nil
}

// resolveSecret reads envVar, falling back to a sibling <envVar>_FILE when
// the value is empty - mirroring the teacher's file-based secret idiom so
// secrets need not sit in plaintext env vars in production deployments.
func resolveSecret(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if path := os.Getenv(envVar + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("ConfigLoader", "failed to read secret file for %s: %s", envVar, err)
			return fallback
		}
		return strings.TrimSpace(string(data))
	}
	return fallback
}

func getStringDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func getIntDefault(envVar string, fallback int) int {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBoolDefault(envVar string, fallback bool) bool {
	if v := os.Getenv(envVar); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getMillisDefault parses an environment variable expressed in milliseconds
// (per spec section 6) into a time.Duration.
func getMillisDefault(envVar string, fallback time.Duration) time.Duration {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func getListDefault(envVar string, fallback []string) []string {
	v := os.Getenv(envVar)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseHeaderList parses "Name: value, Name2: value2" into a map, for
// MCP_AUTH_ERROR_CUSTOM_HEADERS.
func parseHeaderList(v string) map[string]string {
	if v == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if key != "" {
			out[key] = val
		}
	}
	return out
}
