package service

// TokenHasher defines the one-way hashing of refresh tokens before they are
// persisted. The hash is salted per record, so the same plaintext never
// produces the same hash twice; lookup therefore requires comparing the
// candidate against each stored record rather than an indexed fetch.
type TokenHasher interface {
	// Hash produces a salted hash of the raw refresh token.
	Hash(token string) (string, error)

	// Matches reports whether the raw token corresponds to the stored hash.
	Matches(token, hash string) bool
}
