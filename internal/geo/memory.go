package geo

import (
	"context"
	"sort"
	"sync"

	"spcs.org/internal/ids"
)

var _ StationStore = (*MemoryStationStore)(nil)

// MemoryStationStore keeps stations in process memory, keyed by name.
type MemoryStationStore struct {
	mu       sync.RWMutex
	stations map[string]Station
}

func NewMemoryStationStore(seed ...Station) *MemoryStationStore {
	m := &MemoryStationStore{stations: make(map[string]Station)}
	_, _ = m.BulkUpsert(context.Background(), seed)
	return m
}

func (m *MemoryStationStore) List(context.Context) ([]Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Station, 0, len(m.stations))
	for _, st := range m.stations {
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *MemoryStationStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stations), nil
}

func (m *MemoryStationStore) BulkUpsert(_ context.Context, stations []Station) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res UpsertResult
	for _, st := range stations {
		if prev, ok := m.stations[st.Name]; ok {
			st.ID = prev.ID
			res.Modified++
		} else {
			st.ID = ids.New()
			res.Upserts++
		}
		m.stations[st.Name] = st
	}
	return res, nil
}
