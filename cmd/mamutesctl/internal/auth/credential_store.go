package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/EmanuelAngelo/mamutes-fa/pkg/sdk"
	"github.com/zalando/go-keyring"
)

const credentialsFile = "credentials.json"

// Store backends selectable with --store.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

// KeyringService is the keychain service name the tokens are stored under.
const KeyringService = "mamutesctl"

// DefaultDir returns ~/.mamutes, where the CLI keeps its config and file credentials.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".mamutes"), nil
}

// NewStore returns the credential store for backend. dir is used by the file backend.
func NewStore(backend, dir string) (sdk.CredentialStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendKeyring:
		return NewKeyringStore(KeyringService), nil
	case BackendMemory:
		return sdk.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q (want %s, %s or %s)", backend, BackendFile, BackendKeyring, BackendMemory)
	}
}

// FileStore implements sdk.CredentialStore using a JSON file.
// Writes replace the file atomically so a crash never leaves half a token pair.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// Ensure FileStore implements sdk.CredentialStore at compile time.
var _ sdk.CredentialStore = (*FileStore)(nil)

// NewFileStore creates dir (mode 0700) if needed and returns a store backed by
// dir/credentials.json.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, credentialsFile)}, nil
}

// Path returns the credentials file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", false, &sdk.StoreError{Operation: "get", Key: key, Cause: err}
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return &sdk.StoreError{Operation: "set", Key: key, Cause: err}
	}
	values[key] = value
	if err := s.write(values); err != nil {
		return &sdk.StoreError{Operation: "set", Key: key, Cause: err}
	}
	return nil
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return &sdk.StoreError{Operation: "remove", Key: key, Cause: err}
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)

	if len(values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &sdk.StoreError{Operation: "remove", Key: key, Cause: err}
		}
		return nil
	}
	if err := s.write(values); err != nil {
		return &sdk.StoreError{Operation: "remove", Key: key, Cause: err}
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return values, nil
}

func (s *FileStore) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), credentialsFile+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credentials permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// KeyringStore implements sdk.CredentialStore on the OS keychain
// (macOS Keychain, Secret Service, Windows Credential Manager).
type KeyringStore struct {
	service string
}

var _ sdk.CredentialStore = (*KeyringStore)(nil)

// NewKeyringStore returns a store that keeps each key as a keychain entry of service.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (k *KeyringStore) Get(key string) (string, bool, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &sdk.StoreError{Operation: "get", Key: key, Cause: err}
	}
	return v, true, nil
}

func (k *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return &sdk.StoreError{Operation: "set", Key: key, Cause: err}
	}
	return nil
}

func (k *KeyringStore) Remove(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &sdk.StoreError{Operation: "remove", Key: key, Cause: err}
	}
	return nil
}
