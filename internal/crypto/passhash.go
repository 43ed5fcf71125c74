// Package crypto hashes account passwords with Argon2id.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Params are the Argon2id cost settings.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams is used for stored accounts.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// NewSalt returns n random bytes.
func NewSalt(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return b, nil
}

// Hash derives the key for password and salt.
func (p Params) Hash(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// New hashes password under a fresh salt.
func (p Params) New(password string) (hash, salt []byte, err error) {
	salt, err = NewSalt(p.SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return p.Hash(password, salt), salt, nil
}

// Verify compares in constant time.
func (p Params) Verify(password string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(p.Hash(password, salt), hash) == 1
}
