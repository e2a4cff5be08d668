// Package session holds the customer token pair on the client side: a small
// key-value Storage abstraction (in-memory or file-backed) and a Store that
// tracks the pair plus its absolute expiry.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Storage is a flat string key-value store. The durable implementation backs
// tokens and preferences; a separate transient instance holds in-flight PKCE
// state. No cross-process locking: concurrent writers race benignly,
// last write wins.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is the transient implementation.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: map[string]string{}}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// FileStorage persists the map as a JSON file with owner-only permissions.
// Every write flushes the whole map; the files involved are tiny.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	loaded bool
	m      map[string]string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path, m: map[string]string{}}
}

func (s *FileStorage) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	b, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(b, &s.m)
}

func (s *FileStorage) flush() error {
	b, err := json.Marshal(s.m)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, b, 0o600)
}

func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	v, ok := s.m[key]
	return v, ok
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	s.m[key] = value
	return s.flush()
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	delete(s.m, key)
	return s.flush()
}
