package auth

import (
	"github.com/learn2pay/backend/services"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords with bcrypt
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. A cost outside bcrypt's valid range falls back
// to the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of a plaintext password
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", services.WrapInternal("failed to hash password", err)
	}
	return string(hashed), nil
}

// Compare verifies a plaintext password against a stored hash. Any mismatch
// maps to ErrInvalidCredentials.
func (h *Hasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return services.ErrInvalidCredentials
	}
	return nil
}
