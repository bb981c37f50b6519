// Package access implements the API-key and IP allowlist gate that guards the
// mail relay and its documentation surface.
package access

import "crypto/subtle"

// HeaderAPIKey is the request header carrying the API key.
const HeaderAPIKey = "X-API-Key"

// KeyVerifier checks presented API keys against the configured credential.
type KeyVerifier struct {
	key string
}

// NewKeyVerifier creates a KeyVerifier for the given credential.
// An empty key disables authentication.
func NewKeyVerifier(key string) *KeyVerifier {
	return &KeyVerifier{key: key}
}

// Enabled returns true if a credential is configured.
func (v *KeyVerifier) Enabled() bool {
	return v.key != ""
}

// Verify compares the presented key with the credential in constant time.
func (v *KeyVerifier) Verify(presented string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(v.key)) == 1
}
