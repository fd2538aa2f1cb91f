// Package authgate is the supervisor authorization step that every commit
// must pass. The supervisor PIN is held only as a bcrypt hash; a wrong PIN
// gets one deliberately uninformative message and the cashier may retry
// without limit while the cart stays untouched.
package authgate

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"mzansipos/terminal/internal/store"
)

type Gate struct {
	pinHash string
}

// New hashes the configured supervisor PIN at startup so the plaintext never
// lives past process boot.
func New(pin string) (*Gate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(pin)), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Gate{pinHash: string(hash)}, nil
}

// NewFromHash accepts a pre-hashed PIN, for configs that store the hash.
func NewFromHash(pinHash string) *Gate {
	return &Gate{pinHash: pinHash}
}

// Authorize returns nil for the correct PIN and ErrNotAuthorized otherwise.
// Empty input fails the same way as a wrong PIN.
func (g *Gate) Authorize(pin string) error {
	input := strings.TrimSpace(pin)
	if input == "" {
		return store.ErrNotAuthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(g.pinHash), []byte(input)) != nil {
		return store.ErrNotAuthorized
	}
	return nil
}
