package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKinds_DeriveStatus(t *testing.T) {
	assert.Equal(t, 400, Validation("field", "bad").Status)
	assert.Equal(t, 401, Unauthorized("invalid_token", "expired").Status)
	assert.Equal(t, 403, Forbidden("third_party_reauth_required", "nope").Status)
	assert.Equal(t, 404, NotFound("gone").Status)
	assert.Equal(t, 410, Expired("purged").Status)
	assert.Equal(t, 429, RateLimited(30).Status)
	assert.Equal(t, 504, Timeout("slow").Status)
	assert.Equal(t, 502, UpstreamAPI(errors.New("boom"), "upstream down").Status)
	assert.Equal(t, 500, System(errors.New("boom"), "internal").Status)
}

func TestWrap_PassesThroughExistingError(t *testing.T) {
	orig := NotFound("missing")
	assert.Same(t, orig, Wrap(orig))
}

func TestWrap_WrapsPlainError(t *testing.T) {
	e := Wrap(errors.New("plain"))
	assert.Equal(t, KindSystemError, e.Kind)
	assert.Equal(t, "plain", e.Message)
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil))
}

func TestUnwrap_ReturnsCause(t *testing.T) {
	cause := errors.New("root cause")
	e := System(cause, "wrapped")
	assert.ErrorIs(t, e, cause)
}

func TestWWWAuthenticate_OnlyForAuthKinds(t *testing.T) {
	assert.Empty(t, NotFound("x").WWWAuthenticate())

	e := Unauthorized("invalid_request", "missing bearer token").
		WithChallenge("https://mcp.example.com", "", "invalid_request", "https://mcp.example.com/.well-known/oauth-protected-resource", "", "")
	header := e.WWWAuthenticate()
	assert.Contains(t, header, `Bearer realm="https://mcp.example.com"`)
	assert.Contains(t, header, `error="invalid_request"`)
	assert.Contains(t, header, `resource_metadata="https://mcp.example.com/.well-known/oauth-protected-resource"`)
}

func TestWithGuidanceAndAction(t *testing.T) {
	e := Unauthorized("mcp_token_expired", "token expired").
		WithGuidance("refresh the access token").
		WithAction("refresh_token")
	assert.Equal(t, "refresh the access token", e.Guidance)
	assert.Equal(t, "refresh_token", e.ActionTaken)
}
