package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"

	"tally/internal/domain/service"
)

// tokenHasher hashes refresh tokens with bcrypt over a SHA-256 pre-digest.
// The pre-digest keeps the input under bcrypt's 72-byte limit (a signed JWT
// is far longer); bcrypt's per-call salt keeps the stored hash
// non-deterministic, so a database leak reveals nothing reusable.
type tokenHasher struct {
	cost int
}

// NewTokenHasher is the constructor for tokenHasher.
func NewTokenHasher() service.TokenHasher {
	return &tokenHasher{cost: bcrypt.DefaultCost}
}

// Hash produces a salted hash of the raw refresh token.
func (h *tokenHasher) Hash(token string) (string, error) {
	digest := sha256.Sum256([]byte(token))

	bytes, err := bcrypt.GenerateFromPassword(digest[:], h.cost)

	return string(bytes), err
}

// Matches reports whether the raw token corresponds to the stored hash.
func (h *tokenHasher) Matches(token, hash string) bool {
	digest := sha256.Sum256([]byte(token))

	return bcrypt.CompareHashAndPassword([]byte(hash), digest[:]) == nil
}
