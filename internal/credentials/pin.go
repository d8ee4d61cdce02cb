package credentials

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for seeded PINs.
const DefaultCost = 12

// ErrUnavailable reports that no hasher is configured.
var ErrUnavailable = errors.New("credentials: hasher unavailable")

// ErrEmptyPIN is returned when asked to hash an empty secret.
var ErrEmptyPIN = errors.New("credentials: pin is empty")

// Hasher turns a plaintext PIN into a salted hash suitable for pin_hash.
type Hasher interface {
	Hash(pin string) (string, error)
}

// Bcrypt hashes with golang.org/x/crypto/bcrypt at a fixed cost.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a bcrypt hasher, clamping cost into the valid range.
func NewBcrypt(cost int) Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return Bcrypt{Cost: cost}
}

func (b Bcrypt) Hash(pin string) (string, error) {
	if len(pin) == 0 {
		return "", ErrEmptyPIN
	}
	cost := b.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", fmt.Errorf("credentials: hash pin: %w", err)
	}
	return string(hash), nil
}

// Verify compares plaintext pin with a stored hash.
func Verify(hash, pin string) error {
	if hash == "" {
		return errors.New("credentials: pin hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
}

// HashOrNil hashes pin with h. A nil hasher yields ErrUnavailable; callers
// store NULL and carry on.
func HashOrNil(h Hasher, pin string) (*string, error) {
	if h == nil {
		return nil, ErrUnavailable
	}
	hash, err := h.Hash(pin)
	if err != nil {
		return nil, err
	}
	return &hash, nil
}
