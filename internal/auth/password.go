// Package auth hashes passwords and issues session tokens.
package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"stacksight/internal/core"
)

var ErrInvalidCost = errors.New("invalid bcrypt cost")

// Hasher hashes and checks passwords with bcrypt at a fixed cost.
//
// Plaintexts are reduced to a base64 SHA-256 digest first: bcrypt only reads
// 72 bytes, and the digest keeps every byte of a long password significant.
type Hasher struct {
	Cost int
}

// DefaultHasher uses bcrypt.DefaultCost.
var DefaultHasher = Hasher{Cost: bcrypt.DefaultCost}

func NewHasher(cost int) (Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return Hasher{}, fmt.Errorf("%w: %d (want %d-%d)", ErrInvalidCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return Hasher{Cost: cost}, nil
}

// Hash returns a salted bcrypt hash of plaintext. Two calls with the same
// input return different hashes. Any string hashes, the empty one included;
// password policy is the caller's business.
func (h Hasher) Hash(plaintext string) (core.PasswordHash, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(prehash(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return core.PasswordHash(hash), nil
}

// Check reports whether plaintext matches hash. A malformed hash never matches.
func (h Hasher) Check(plaintext string, hash core.PasswordHash) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(plaintext)) == nil
}

// HashPassword hashes with DefaultHasher.
func HashPassword(plaintext string) (string, error) {
	hash, err := DefaultHasher.Hash(plaintext)
	return string(hash), err
}

// CheckPassword checks against a hash produced by any Hasher. Hashes made by
// plain bcrypt over the raw password, without the SHA-256 step, never match;
// such users have to reset their password.
func CheckPassword(plaintext, hash string) bool {
	return DefaultHasher.Check(plaintext, core.PasswordHash(hash))
}

func prehash(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
