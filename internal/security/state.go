package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StateClaims bind an OAuth round trip to the browser that started it.
type StateClaims struct {
	Nonce string `json:"n"`
	jwt.RegisteredClaims
}

// MakeState signs a short-lived OAuth state value (HS256).
func MakeState(secret, nonce string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := StateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

// ParseState verifies signature and expiry and returns the embedded nonce.
func ParseState(secret, state string) (string, error) {
	t, err := jwt.ParseWithClaims(state, &StateClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	c, ok := t.Claims.(*StateClaims)
	if !ok || !t.Valid || c.Nonce == "" {
		return "", errors.New("invalid state")
	}
	return c.Nonce, nil
}
