// Package credstore is the client-side credential store: a small persistent
// key-value map holding the session tokens and cached profile data.
package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/mravshan/libra/internal/errs"
)

// Well-known keys. Everything under these keys is owned by the session layer.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyFCMToken     = "fcmToken"
)

// Store is a persistent string key-value store. Get returns errs.ErrNotFound
// for missing keys; Delete of a missing key is a no-op.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStore keeps the map as a JSON file with owner-only permissions.
// Every Set/Delete rewrites the file so a crash never loses more than the
// in-flight write.
type FileStore struct {
	mu   sync.Mutex
	path string
	vals map[string]string
}

// NewFileStore loads (or lazily creates) the store at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, vals: make(map[string]string)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(b, &s.vals); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return s.flush()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vals[key]; !ok {
		return nil
	}
	delete(s.vals, key)
	return s.flush()
}

// flush writes the map atomically: temp file in the same directory, then rename.
func (s *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s.vals, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu   sync.Mutex
	vals map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{vals: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals, key)
	return nil
}
