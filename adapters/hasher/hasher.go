// Package hasher hashes relay access tokens.
package hasher

import (
	"crypto/subtle"

	"github.com/dominhhai/mws-sdk/ports"
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes with bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. An out-of-range cost uses the default.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Cost returns the work factor new hashes are made with.
func (h *Bcrypt) Cost() int { return h.cost }

// Hash generates a bcrypt hash of plaintext.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

// Compare reports whether plaintext matches hash. Hashes that are not
// bcrypt never match.
func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Plain stores tokens as given. Tests only.
type Plain struct{}

// Hash returns plaintext unchanged.
func (Plain) Hash(plaintext string) ([]byte, error) {
	return []byte(plaintext), nil
}

// Compare checks equality in constant time.
func (Plain) Compare(hash []byte, plaintext string) bool {
	return subtle.ConstantTimeCompare(hash, []byte(plaintext)) == 1
}

// Ensure interface compliance.
var (
	_ ports.Hasher = (*Bcrypt)(nil)
	_ ports.Hasher = Plain{}
)
