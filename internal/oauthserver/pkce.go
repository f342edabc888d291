package oauthserver

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for a PKCE code
	// verifier: 32 bytes is 256 bits of entropy.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state and
	// authorization-code parameters.
	stateBytes = 32
)

// PKCEChallenge is the verifier/challenge pair a client presents across the
// authorize and token endpoints.
type PKCEChallenge struct {
	CodeVerifier        string
	CodeChallenge       string
	CodeChallengeMethod string
}

// GeneratePKCE generates a new S256 PKCE code verifier and challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, challenge, err := GeneratePKCERaw()
	if err != nil {
		return nil, err
	}
	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}, nil
}

// GeneratePKCERaw generates a PKCE code verifier and its S256 challenge as
// raw strings.
func GeneratePKCERaw() (verifier, challenge string, err error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return "", "", fmt.Errorf("generate PKCE verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(verifierBytes)

	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])

	return verifier, challenge, nil
}

// VerifyPKCE checks a presented code_verifier against the challenge recorded
// at authorization time. Only S256 is accepted; plain is rejected per the
// spec's PKCE-required, S256-only posture.
func VerifyPKCE(verifier, challenge, method string) bool {
	if method != "S256" {
		return false
	}
	hash := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// GenerateState generates a random, base64url-encoded CSRF state token.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateToken generates a random, base64url-encoded opaque token suitable
// for authorization codes and refresh tokens.
func GenerateToken() (string, error) {
	return GenerateState()
}
