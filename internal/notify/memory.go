package notify

import (
	"context"
	"sort"
	"sync"

	"spcs.org/internal/geo"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	citizen  []Notification
	stations []StationNotification
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) CreateForUser(_ context.Context, n *Notification) error {
	m.mu.Lock()
	m.citizen = append(m.citizen, *n)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListForUser(_ context.Context, userID string) ([]Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Notification
	for i := len(m.citizen) - 1; i >= 0; i-- {
		if n := m.citizen[i]; n.UserID == userID {
			res = append(res, n)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) MarkUserRead(_ context.Context, userID, id string) (*Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.citizen {
		if m.citizen[i].ID == id && m.citizen[i].UserID == userID {
			m.citizen[i].Read = true
			n := m.citizen[i]
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) MarkAllUserRead(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.citizen {
		if m.citizen[i].UserID == userID {
			m.citizen[i].Read = true
		}
	}
	return nil
}

func (m *MemoryStore) DeleteForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.citizen[:0]
	for _, n := range m.citizen {
		if n.UserID != userID {
			kept = append(kept, n)
		}
	}
	m.citizen = kept
	return nil
}

func (m *MemoryStore) CreateForStation(_ context.Context, n *StationNotification) error {
	m.mu.Lock()
	m.stations = append(m.stations, *n)
	m.mu.Unlock()
	return nil
}

func stationMatch(scope, station string) bool {
	return scope == geo.AllStations || scope == station
}

func (m *MemoryStore) ListForStation(_ context.Context, station string, limit int) ([]StationNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []StationNotification
	for i := len(m.stations) - 1; i >= 0; i-- {
		if n := m.stations[i]; stationMatch(station, n.Station) {
			res = append(res, n)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *MemoryStore) MarkStationRead(_ context.Context, station, id string) (*StationNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stations {
		if m.stations[i].ID == id && stationMatch(station, m.stations[i].Station) {
			m.stations[i].Read = true
			n := m.stations[i]
			return &n, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) MarkAllStationRead(_ context.Context, station string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.stations {
		if stationMatch(station, m.stations[i].Station) {
			m.stations[i].Read = true
		}
	}
	return nil
}
