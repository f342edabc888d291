package oauthserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTIssuer_MintAndVerify_Roundtrip(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("test-signing-key-0123456789"), "https://mcp.example.com", time.Hour)
	require.NoError(t, err)

	token, exp, err := issuer.Mint("jti-1", "user-1", "client-1", []string{"tools:read", "tools:write"})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "client-1", claims.ClientID)
	assert.Equal(t, []string{"tools:read", "tools:write"}, claims.Scopes())
}

func TestJWTIssuer_Verify_RejectsTamperedToken(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("test-signing-key-0123456789"), "https://mcp.example.com", time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.Mint("jti-1", "user-1", "client-1", nil)
	require.NoError(t, err)

	_, err = issuer.Verify(token + "tampered")
	assert.Error(t, err)
}

func TestJWTIssuer_Verify_RejectsWrongKey(t *testing.T) {
	issuer, err := NewJWTIssuer([]byte("key-a-0123456789012345"), "https://mcp.example.com", time.Hour)
	require.NoError(t, err)
	other, err := NewJWTIssuer([]byte("key-b-0123456789012345"), "https://mcp.example.com", time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.Mint("jti-1", "user-1", "client-1", nil)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestNewJWTIssuer_RejectsEmptyKey(t *testing.T) {
	_, err := NewJWTIssuer(nil, "https://mcp.example.com", time.Hour)
	assert.Error(t, err)
}
