package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// NewNonce returns 256 bits of CSPRNG output, base64url encoded.
func NewNonce() (string, error) {
	return randomToken(32)
}

func NewSessionID() (string, error) {
	return randomToken(32)
}

func NewID() (string, error) {
	return randomToken(16)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is how opaque bearer values are stored at rest.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
