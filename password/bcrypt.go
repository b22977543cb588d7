package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt work factor used when Config.Cost is zero.
	DefaultCost = 12

	// bcrypt only reads the first 72 bytes of its input.
	maxBcryptInput = 72
)

// Config defines a public type used by multiauth APIs.
type Config struct {
	Cost int
}

// Hasher wraps bcrypt with a fixed work factor.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable.
type Hasher struct {
	cost int
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt encoding of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	out, err := bcrypt.GenerateFromPassword(clamp(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare reports whether password matches encodedHash. A malformed hash
// compares as a mismatch.
func (h *Hasher) Compare(password, encodedHash string) bool {
	if encodedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), clamp(password)) == nil
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost
// than the hasher is configured for.
func (h *Hasher) NeedsUpgrade(encodedHash string) bool {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false
	}
	return cost < h.cost
}

func clamp(password string) []byte {
	b := []byte(password)
	if len(b) > maxBcryptInput {
		b = b[:maxBcryptInput]
	}
	return b
}
