package config

import "time"

// Defaults returns the configuration used before environment overlay. It is
// deliberately conservative: no auth, no plugins, stdio transport, in-memory
// storage - a caller must opt into anything with external effects.
func Defaults() Config {
	return Config{
		Transport: TransportConfig{
			Kind:                 TransportStdio,
			HTTPHost:             "localhost",
			HTTPPort:             8080,
			CORSEnabled:          false,
			KeepaliveInterval:    25 * time.Second,
			EventCleanupInterval: 6 * time.Hour,
			EventKeepLast:        1000,
			RateLimit: RateLimitConfig{
				Enabled:       false,
				RatePerSecond: 10,
				Burst:         20,
				IdleEvict:     10 * time.Minute,
			},
		},
		Session: SessionConfig{
			Timeout:           30 * time.Minute,
			CleanupInterval:   time.Minute,
			MaxConcurrent:     1000,
			EnablePersistence: false,
			RequestTimeout:    30 * time.Second,
			MaxRequestBytes:   4 << 20,
		},
		Auth: AuthConfig{
			Enabled:                   false,
			HTTPEnabled:               true,
			StdioEnabled:              false,
			StdioAllowOAuth:           false,
			SessionBindingEnabled:     true,
			SessionBindingAutoRefresh: true,
			SessionBindingTimeout:     5 * time.Second,
			ErrorIncludeDetails:       false,
			ErrorIncludeGuidance:      true,
		},
		OAuthServer: OAuthServerConfig{
			PKCERequired:           true,
			DynamicRegistration:    true,
			TokenExpiration:        time.Hour,
			RefreshTokenExpiration: 30 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			KVPath: "./data/mcpserver.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Audit: AuditConfig{
			Enabled:       false,
			RetentionDays: 90,
		},
		Plugins: PluginsConfig{
			Autoload:     true,
			WatchChanges: false,
		},
	}
}
