package oauthserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE_VerifiesAgainstItsOwnChallenge(t *testing.T) {
	p, err := GeneratePKCE()
	require.NoError(t, err)
	assert.Equal(t, "S256", p.CodeChallengeMethod)
	assert.True(t, VerifyPKCE(p.CodeVerifier, p.CodeChallenge, p.CodeChallengeMethod))
}

func TestVerifyPKCE_RejectsWrongVerifier(t *testing.T) {
	p, err := GeneratePKCE()
	require.NoError(t, err)
	assert.False(t, VerifyPKCE("not-the-verifier", p.CodeChallenge, p.CodeChallengeMethod))
}

func TestVerifyPKCE_RejectsPlainMethod(t *testing.T) {
	p, err := GeneratePKCE()
	require.NoError(t, err)
	assert.False(t, VerifyPKCE(p.CodeVerifier, p.CodeVerifier, "plain"))
}

func TestGenerateState_ProducesDistinctValues(t *testing.T) {
	a, err := GenerateState()
	require.NoError(t, err)
	b, err := GenerateState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
