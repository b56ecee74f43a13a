package complaint

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Complaint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Complaint)}
}

func clone(c *Complaint) *Complaint {
	cp := *c
	if c.Location != nil {
		loc := *c.Location
		cp.Location = &loc
	}
	return &cp
}

func (m *MemoryStore) Create(_ context.Context, c *Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.ID] = clone(c)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Complaint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(c), nil
}

func (m *MemoryStore) UpdateOwnerFields(_ context.Context, id, ownerID string, patch Patch) (*Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || c.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	patch.Apply(c)
	c.UpdatedAt = time.Now().UTC()
	return clone(c), nil
}

func (m *MemoryStore) Assign(_ context.Context, id, station, officerID, officerName string, at time.Time) (*Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || !inScope(station, c.Station) {
		return nil, ErrNotFound
	}
	c.AssignedTo = officerID
	c.AssignedOfficer = officerName
	c.AssignedAt = &at
	c.Status = StatusInProgress
	c.UpdatedAt = at
	return clone(c), nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id, station string, status Status, officerID string, at time.Time) (*Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok || !inScope(station, c.Station) {
		return nil, ErrNotFound
	}
	c.Status = status
	c.LastUpdatedBy = officerID
	c.LastUpdatedAt = &at
	c.UpdatedAt = at
	return clone(c), nil
}

func (m *MemoryStore) matching(scope Scope) []Complaint {
	var res []Complaint
	for _, c := range m.items {
		if scope.OwnerID != "" && c.OwnerID != scope.OwnerID {
			continue
		}
		if !inScope(scope.Station, c.Station) {
			continue
		}
		if scope.Status != "" && c.Status != scope.Status {
			continue
		}
		res = append(res, *clone(c))
	}
	return res
}

func (m *MemoryStore) List(_ context.Context, scope Scope, page Page) ([]Complaint, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.matching(scope)
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	start := page.Offset()
	if start >= total {
		return nil, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *MemoryStore) CountByStatus(_ context.Context, scope Scope) (map[Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Status]int)
	for _, c := range m.matching(scope) {
		out[c.Status]++
	}
	return out, nil
}

func (m *MemoryStore) DeleteForOwner(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.items {
		if c.OwnerID == ownerID {
			delete(m.items, id)
		}
	}
	return nil
}
