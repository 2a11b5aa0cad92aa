// Package auth provides the Argon2id password hashing capability used by the
// chat credential store.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned when a stored digest cannot be parsed.
var ErrInvalidHash = errors.New("invalid hash format")

// Params are the Argon2id cost parameters.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follow the OWASP recommendation for Argon2id.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Hasher hashes and verifies passwords with Argon2id.
type Hasher struct {
	params Params
}

// NewHasher returns a Hasher using params; zero fields take their default.
func NewHasher(params Params) *Hasher {
	if params.Memory == 0 {
		params.Memory = DefaultParams.Memory
	}
	if params.Iterations == 0 {
		params.Iterations = DefaultParams.Iterations
	}
	if params.Parallelism == 0 {
		params.Parallelism = DefaultParams.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultParams.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultParams.KeyLength
	}
	return &Hasher{params: params}
}

// Hash returns an encoded digest of the form
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify re-derives the key from secret with the parameters stored in digest
// and compares the two in constant time.
func (h *Hasher) Verify(secret, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	// argon2.IDKey panics on zero parallelism.
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false, fmt.Errorf("%w: zero cost parameter", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(key) == 0 {
		return false, fmt.Errorf("%w: empty key", ErrInvalidHash)
	}

	candidate := argon2.IDKey([]byte(secret), salt, iterations, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}
