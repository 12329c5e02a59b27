// Package pkce implements RFC 7636 code challenge verification for the
// S256 method.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Challenge derives the S256 code challenge for a verifier: the SHA-256
// digest of the verifier, base64url-encoded without padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyChallenge reports whether challenge matches the canonical S256
// encoding of verifier. The comparison is constant-time.
func VerifyChallenge(challenge, verifier string) bool {
	expected := Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}
