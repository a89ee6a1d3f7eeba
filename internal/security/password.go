package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is lowered by tests.
var BcryptCost = 12

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), BcryptCost)
	return string(b), err
}

// CheckPassword compares in constant time; an empty hash never matches.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// BurnPasswordCheck costs the same as a failed CheckPassword. Callers use it
// when there is no hash to compare so unknown accounts are not faster to reject.
func BurnPasswordCheck(pw string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("syncora-dummy-password"), BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pw))
}
