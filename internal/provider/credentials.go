package provider

import (
	"sync"

	"tryon-cli/internal/ports"
)

// MemoryCredentialStore is a concurrency-safe in-process implementation of
// ports.CredentialStore. Real deployments back this with whatever storage
// the host environment offers; the CLI seeds it from the environment.
type MemoryCredentialStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryCredentialStore seeds the store with token; an empty token means
// no stored credential.
func NewMemoryCredentialStore(token string) *MemoryCredentialStore {
	return &MemoryCredentialStore{token: token}
}

// Token returns the stored credential and whether one exists.
func (s *MemoryCredentialStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Clear discards the stored credential.
func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

var _ ports.CredentialStore = (*MemoryCredentialStore)(nil)
