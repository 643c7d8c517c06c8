package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifierShape(t *testing.T) {
	verifier, err := GenerateVerifier()
	require.NoError(t, err)

	// 32 bytes of entropy encode to 43 URL-safe characters, unpadded.
	assert.Len(t, verifier, 43)
	assert.False(t, strings.ContainsAny(verifier, "+/="))

	decoded, err := base64.RawURLEncoding.DecodeString(verifier)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
}

func TestGenerateVerifierUnique(t *testing.T) {
	a, err := GenerateVerifier()
	require.NoError(t, err)
	b, err := GenerateVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestChallengeS256Derivation(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	sum := sha256.Sum256([]byte(verifier))
	want := base64.RawURLEncoding.EncodeToString(sum[:])

	got := ChallengeS256(verifier)
	assert.Equal(t, want, got)
	assert.False(t, strings.ContainsAny(got, "+/="))
}

func TestGenerateStateIndependentOfVerifier(t *testing.T) {
	verifier, err := GenerateVerifier()
	require.NoError(t, err)
	state, err := GenerateState()
	require.NoError(t, err)

	assert.NotEqual(t, verifier, state)
	assert.Len(t, state, 43)
}
