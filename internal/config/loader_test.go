package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	clearEnv(t, "MCP_TRANSPORT", "HTTP_PORT", "MCP_AUTH_ENABLED")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportStdio, cfg.Transport.Kind)
	assert.False(t, cfg.Auth.Enabled)
}

func TestLoad_OverlaysEnvironment(t *testing.T) {
	clearEnv(t, "MCP_TRANSPORT", "HTTP_PORT", "MCP_SESSION_TIMEOUT", "MCP_AUTH_ENABLED")
	os.Setenv("MCP_TRANSPORT", "http")
	os.Setenv("HTTP_PORT", "9090")
	os.Setenv("MCP_SESSION_TIMEOUT", "5000")
	os.Setenv("MCP_AUTH_ENABLED", "true")
	os.Setenv("MCP_AUTH_HTTP_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, cfg.Transport.Kind)
	assert.Equal(t, 9090, cfg.Transport.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Session.Timeout)
	assert.True(t, cfg.Auth.Enabled)
}

func TestLoad_RejectsInvalidCombination(t *testing.T) {
	clearEnv(t, "OAUTH_PROVIDER_DYNAMIC_REGISTRATION", "OAUTH_PROVIDER_PKCE")
	os.Setenv("OAUTH_PROVIDER_DYNAMIC_REGISTRATION", "true")
	os.Setenv("OAUTH_PROVIDER_PKCE", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkceRequired")
}

func TestResolveSecret_FallsBackToFile(t *testing.T) {
	clearEnv(t, "TEST_SECRET", "TEST_SECRET_FILE")
	f, err := os.CreateTemp(t.TempDir(), "secret")
	require.NoError(t, err)
	_, err = f.WriteString("sekret\n")
	require.NoError(t, err)
	f.Close()

	os.Setenv("TEST_SECRET_FILE", f.Name())
	assert.Equal(t, "sekret", resolveSecret("TEST_SECRET", ""))
}

func TestParseHeaderList(t *testing.T) {
	headers := parseHeaderList("X-Retry-After: 30, X-Error-Code: expired")
	assert.Equal(t, "30", headers["X-Retry-After"])
	assert.Equal(t, "expired", headers["X-Error-Code"])
}
