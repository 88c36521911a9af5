package sdk

import (
	"sync"
)

// Storage keys used to persist the token pair. An absent key means "not authenticated".
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// CredentialStore is durable key-value persistence for the token pair.
// Implementations must be safe for concurrent use and must survive process restarts
// (the in-memory store is only meant for tests and ephemeral sessions).
//
// Get returns ("", false, nil) for a missing key. Remove of a missing key is not an error.
type CredentialStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// StoreError indicates a credential storage failure.
type StoreError struct {
	Operation string // "get", "set", "remove"
	Key       string
	Cause     error
}

func (e *StoreError) Error() string {
	msg := e.Operation + " credential"
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Credentials is a point-in-time copy of the persisted token pair.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// IsZero reports whether no access token is present.
func (c Credentials) IsZero() bool {
	return c.AccessToken == ""
}

// LoadCredentials reads the token pair from store.
func LoadCredentials(store CredentialStore) (Credentials, error) {
	var creds Credentials
	access, _, err := store.Get(AccessTokenKey)
	if err != nil {
		return creds, err
	}
	refresh, _, err := store.Get(RefreshTokenKey)
	if err != nil {
		return creds, err
	}
	creds.AccessToken = access
	creds.RefreshToken = refresh
	return creds, nil
}

// MemoryStore is a process-local CredentialStore.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ CredentialStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
