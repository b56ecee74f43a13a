package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"spcs.org/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store in process memory. Records are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	citizens map[string]*Citizen
	officers map[string]*Officer
	requests []StationUpdateRequest
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		citizens: make(map[string]*Citizen),
		officers: make(map[string]*Officer),
	}
}

func (m *MemoryStore) Citizens(context.Context) CitizenStore               { return memCitizens{m} }
func (m *MemoryStore) Officers(context.Context) OfficerStore               { return memOfficers{m} }
func (m *MemoryStore) StationRequests(context.Context) StationRequestStore { return memRequests{m} }

// Citizens -----------------------------------------------------------------
type memCitizens struct{ m *MemoryStore }

func (s memCitizens) Create(_ context.Context, c *Citizen) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.citizens {
		if existing.Email == c.Email {
			return ErrAlreadyExists
		}
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.m.citizens[c.ID] = &cp
	return nil
}

func (s memCitizens) Find(_ context.Context, id string) (*Citizen, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	c, ok := s.m.citizens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s memCitizens) FindByEmail(_ context.Context, email string) (*Citizen, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, c := range s.m.citizens {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s memCitizens) UpdateProfile(_ context.Context, id string, patch CitizenPatch) (*Citizen, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.citizens[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Email != nil && *patch.Email != c.Email {
		for _, other := range s.m.citizens {
			if other.Email == *patch.Email {
				return nil, ErrAlreadyExists
			}
		}
	}
	set(&c.Username, patch.Username)
	set(&c.Email, patch.Email)
	set(&c.Phone, patch.Phone)
	set(&c.Address, patch.Address)
	set(&c.AvatarURL, patch.AvatarURL)
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (s memCitizens) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.citizens[id]
	if !ok {
		return ErrNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

func (s memCitizens) Delete(_ context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.citizens[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.citizens, id)
	return nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Officers -----------------------------------------------------------------
type memOfficers struct{ m *MemoryStore }

func copyOfficer(o *Officer) *Officer {
	cp := *o
	cp.LoginHistory = append([]LoginRecord(nil), o.LoginHistory...)
	return &cp
}

func (s memOfficers) Create(_ context.Context, o *Officer) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.officers {
		if existing.Email == o.Email {
			return ErrAlreadyExists
		}
	}
	if o.ID == "" {
		o.ID = ids.New()
	}
	if o.Status == "" {
		o.Status = OfficerActive
	}
	if o.SessionVersion <= 0 {
		o.SessionVersion = 1
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	s.m.officers[o.ID] = copyOfficer(o)
	return nil
}

func (s memOfficers) Find(_ context.Context, id string) (*Officer, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	o, ok := s.m.officers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOfficer(o), nil
}

func (s memOfficers) FindByEmail(_ context.Context, email string) (*Officer, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, o := range s.m.officers {
		if o.Email == email {
			return copyOfficer(o), nil
		}
	}
	return nil, ErrNotFound
}

func (s memOfficers) ListByStation(_ context.Context, station string) ([]*Officer, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var res []*Officer
	for _, o := range s.m.officers {
		if o.Station == station {
			res = append(res, copyOfficer(o))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Username < res[j].Username })
	return res, nil
}

func (s memOfficers) UpdateProfile(_ context.Context, id string, patch OfficerPatch) (*Officer, error) {
	if patch.Status != nil && !ValidOfficerStatus(*patch.Status) {
		return nil, ErrInvalidInput
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.officers[id]
	if !ok {
		return nil, ErrNotFound
	}
	set(&o.Name, patch.Name)
	set(&o.Rank, patch.Rank)
	set(&o.Phone, patch.Phone)
	set(&o.City, patch.City)
	set(&o.AvatarURL, patch.AvatarURL)
	set(&o.Status, patch.Status)
	o.UpdatedAt = time.Now().UTC()
	return copyOfficer(o), nil
}

func (s memOfficers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.officers[id]
	if !ok {
		return ErrNotFound
	}
	o.PasswordHash = passwordHash
	return nil
}

func (s memOfficers) RecordLogin(_ context.Context, id string, rec LoginRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.officers[id]
	if !ok {
		return ErrNotFound
	}
	at := rec.At
	o.LastLoginAt = &at
	o.LastLoginIP = rec.IP
	o.LastLoginAgent = rec.UserAgent
	o.LoginHistory = append([]LoginRecord{rec}, o.LoginHistory...)
	if len(o.LoginHistory) > MaxLoginHistory {
		o.LoginHistory = o.LoginHistory[:MaxLoginHistory]
	}
	return nil
}

func (s memOfficers) SessionState(_ context.Context, id string) (SessionState, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	o, ok := s.m.officers[id]
	if !ok {
		return SessionState{}, ErrNotFound
	}
	return SessionState{Version: o.SessionVersion, Station: o.Station}, nil
}

func (s memOfficers) BumpSessionVersion(_ context.Context, id string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.officers[id]
	if !ok {
		return 0, ErrNotFound
	}
	if o.SessionVersion < 1 {
		o.SessionVersion = 1
	}
	o.SessionVersion++
	return o.SessionVersion, nil
}

func (s memOfficers) SetTwoFactor(_ context.Context, id string, enabled bool) (*Officer, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.officers[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.TwoFactorEnabled = enabled
	return copyOfficer(o), nil
}

// Station requests ---------------------------------------------------------
type memRequests struct{ m *MemoryStore }

func (s memRequests) Create(_ context.Context, req *StationUpdateRequest) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if req.ID == "" {
		req.ID = ids.New()
	}
	if req.Status == "" {
		req.Status = "Pending"
	}
	req.CreatedAt = time.Now().UTC()
	s.m.requests = append(s.m.requests, *req)
	return nil
}
