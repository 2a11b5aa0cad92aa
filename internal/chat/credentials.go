package chat

import (
	"fmt"
	"sync"
)

// Hasher is the password hashing capability used by the CredentialStore.
// Verify must compare digests in constant time.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// Identity is a registered username and its password digest.
type Identity struct {
	Username string
	digest   string
}

// CredentialStore holds registered identities keyed by exact username.
type CredentialStore struct {
	mu         sync.RWMutex
	identities map[string]Identity
	hasher     Hasher
}

func NewCredentialStore(hasher Hasher) *CredentialStore {
	return &CredentialStore{
		identities: make(map[string]Identity),
		hasher:     hasher,
	}
}

// Register stores a digest of password under username. The existence check
// and the insert happen under one lock, so of several concurrent calls for the
// same username exactly one succeeds and the others get ErrAlreadyExists.
func (s *CredentialStore) Register(username, password string) error {
	// Hashing is slow; do it before taking the lock.
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[username]; exists {
		return ErrAlreadyExists
	}
	s.identities[username] = Identity{Username: username, digest: digest}
	return nil
}

// Verify checks password against the stored digest for username.
func (s *CredentialStore) Verify(username, password string) (Identity, error) {
	s.mu.RLock()
	identity, ok := s.identities[username]
	s.mu.RUnlock()

	if !ok {
		return Identity{}, ErrNotFound
	}

	match, err := s.hasher.Verify(password, identity.digest)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMismatch, err)
	}
	if !match {
		return Identity{}, ErrMismatch
	}
	return identity, nil
}

// Len returns the number of registered identities.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

func (s *CredentialStore) digestOf(username string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[username]
	return identity.digest, ok
}
