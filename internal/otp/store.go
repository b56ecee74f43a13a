package otp

import (
	"context"
	"sync"
	"time"
)

// Entry is one pending verification challenge.
type Entry struct {
	Destination string    `json:"destination"`
	Email       string    `json:"email,omitempty"`
	Code        string    `json:"code"`
	Purpose     string    `json:"purpose"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Store keeps pending challenges keyed by opaque session id. Get returns
// ErrInvalidSession for unknown ids. Delete reports whether this call removed
// the entry; concurrent deletes of one id see true exactly once.
type Store interface {
	Put(ctx context.Context, id string, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	Delete(ctx context.Context, id string) (bool, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is the single-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Put(_ context.Context, id string, e Entry) error {
	m.mu.Lock()
	m.entries[id] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrInvalidSession
	}
	return e, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	delete(m.entries, id)
	return ok, nil
}

// Sweep drops every entry whose expiry is at or before now.
func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.entries {
		if !e.ExpiresAt.After(now) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of pending entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
