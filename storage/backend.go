package storage

import (
	"sync"

	"chat-widget/db"
)

// Backend is the minimal capability set a persistence medium must offer
type Backend interface {
	// Read returns the value stored under key; ok is false when nothing is stored
	Read(key string) (value string, ok bool, err error)
	Write(key, value string) error
	Remove(key string) error
}

// MemoryBackend persists nothing; every read misses
type MemoryBackend struct{}

// Read implements Backend
func (MemoryBackend) Read(string) (string, bool, error) { return "", false, nil }

// Write implements Backend
func (MemoryBackend) Write(string, string) error { return nil }

// Remove implements Backend
func (MemoryBackend) Remove(string) error { return nil }

// SessionBackend keeps values for the lifetime of the process
type SessionBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSessionBackend creates an empty session backend
func NewSessionBackend() *SessionBackend {
	return &SessionBackend{values: make(map[string]string)}
}

var (
	processSessionOnce sync.Once
	processSession     *SessionBackend
)

// ProcessSession returns the session backend shared by every widget in this process
func ProcessSession() *SessionBackend {
	processSessionOnce.Do(func() {
		processSession = NewSessionBackend()
	})
	return processSession
}

// Read implements Backend
func (s *SessionBackend) Read(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Write implements Backend
func (s *SessionBackend) Write(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// Remove implements Backend
func (s *SessionBackend) Remove(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// DurableBackend stores values in the sqlite database so they survive restarts
type DurableBackend struct {
	db *db.DB
}

// NewDurableBackend wraps an open database
func NewDurableBackend(database *db.DB) *DurableBackend {
	return &DurableBackend{db: database}
}

// Read implements Backend
func (d *DurableBackend) Read(key string) (string, bool, error) {
	entry, ok, err := d.db.GetEntry(key)
	if err != nil || !ok {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Write implements Backend
func (d *DurableBackend) Write(key, value string) error {
	return d.db.SetEntry(key, value)
}

// Remove implements Backend
func (d *DurableBackend) Remove(key string) error {
	return d.db.DeleteEntry(key)
}
