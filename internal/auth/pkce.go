package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateVerifier returns a PKCE code verifier: 32 cryptographically
// random bytes in unpadded URL-safe base64.
func GenerateVerifier() (string, error) {
	return randomToken()
}

// GenerateState returns a CSRF state nonce with the same shape as the
// code verifier but drawn independently.
func GenerateState() (string, error) {
	return randomToken()
}

// ChallengeS256 derives the code challenge from a verifier per the S256
// method: unpadded URL-safe base64 of SHA-256(verifier).
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
