package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// PINHasher hashes roster PINs at seed time and checks them at login.
type PINHasher struct {
	cost int
}

func NewPINHasher(cost int) PINHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return PINHasher{cost: cost}
}

func (h PINHasher) Hash(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches reports whether pin hashes to hash. Malformed hashes never match.
func (h PINHasher) Matches(hash, pin string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// SecretEqual compares two secrets in constant time. An empty expected
// secret never matches.
func SecretEqual(expected, given string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
