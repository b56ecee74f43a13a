package complaint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spcs.org/internal/geo"
	"spcs.org/internal/ids"
	"spcs.org/internal/notify"
	"spcs.org/internal/obs"
)

// Router picks the station a new complaint goes to.
type Router interface {
	Route(ctx context.Context, explicit string, loc *geo.Location) (geo.Routing, error)
}

// Notifier records and pushes notifications.
type Notifier interface {
	NotifyOwner(ctx context.Context, ownerID, complaintID string, kind notify.Kind, message, status string) (*notify.Notification, error)
	NotifyJurisdiction(ctx context.Context, station, complaintID, title, message string) (*notify.StationNotification, error)
}

// Officer is the acting officer of a state change.
type Officer struct {
	ID      string
	Name    string
	Station string
}

// Service runs complaint intake and officer actions. Every state change is
// followed by a synchronous dispatch; when the durable notification fails the
// change is kept and the error is returned alongside the complaint.
type Service struct {
	store    Store
	router   Router
	notifier Notifier
	now      func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, router Router, notifier Notifier, opts ...Option) *Service {
	s := &Service{store: store, router: router, notifier: notifier, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and routes a complaint, stores it and notifies the owner
// and, when routed, the station.
func (s *Service) Create(ctx context.Context, ownerID string, f Fields) (*Complaint, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Type = strings.TrimSpace(f.Type)
	f.Description = strings.TrimSpace(f.Description)
	if ownerID == "" || f.Title == "" || f.Type == "" || f.Description == "" {
		return nil, ErrInvalidInput
	}
	routing, err := s.router.Route(ctx, f.Station, f.Location)
	if err != nil {
		return nil, fmt.Errorf("route complaint: %w", err)
	}
	now := s.now().UTC()
	c := &Complaint{
		ID:                ids.New(),
		OwnerID:           ownerID,
		Title:             f.Title,
		Type:              f.Type,
		Description:       f.Description,
		Category:          strings.TrimSpace(f.Category),
		Contact:           strings.TrimSpace(f.Contact),
		PhotoURL:          strings.TrimSpace(f.PhotoURL),
		Location:          f.Location,
		Status:            StatusPending,
		Station:           routing.Station,
		StationID:         routing.StationID,
		NearestDistanceKm: routing.DistanceKm,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	routed := routing.Routed()
	obs.ComplaintCreated(routed)

	msg := notify.CreatedMessage(c.Title, c.Station, c.NearestDistanceKm, routed)
	if _, err := s.notifier.NotifyOwner(ctx, ownerID, c.ID, notify.KindComplaintCreated, msg, ""); err != nil {
		return c, err
	}
	if routed {
		if _, err := s.notifier.NotifyJurisdiction(ctx, c.Station, c.ID, c.Title, notify.StationMessage(c.Title)); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Get returns the complaint when ownerID owns it. Foreign complaints are
// reported as not found.
func (s *Service) Get(ctx context.Context, id, ownerID string) (*Complaint, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return c, nil
}

// UpdateOwnerFields applies the owner-editable fields of patch.
func (s *Service) UpdateOwnerFields(ctx context.Context, id, ownerID string, patch Patch) (*Complaint, error) {
	for _, v := range []*string{patch.Title, patch.Type, patch.Description} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, ErrInvalidInput
		}
	}
	if patch.empty() {
		return s.Get(ctx, id, ownerID)
	}
	return s.store.UpdateOwnerFields(ctx, id, ownerID, patch)
}

// Assign hands the complaint to officer and moves it to In Progress.
func (s *Service) Assign(ctx context.Context, id string, officer Officer) (*Complaint, error) {
	c, err := s.store.Assign(ctx, id, officer.Station, officer.ID, officer.Name, s.now().UTC())
	if err != nil {
		return nil, err
	}
	msg := notify.AssignedMessage(c.Title, officer.Name)
	if _, err := s.notifier.NotifyOwner(ctx, c.OwnerID, c.ID, notify.KindComplaintAssigned, msg, ""); err != nil {
		return c, err
	}
	return c, nil
}

// SetStatus moves the complaint to status on behalf of officer.
func (s *Service) SetStatus(ctx context.Context, id string, officer Officer, status string) (*Complaint, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	c, err := s.store.SetStatus(ctx, id, officer.Station, st, officer.ID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	msg := notify.StatusMessage(c.Title, string(st), officer.Name)
	if _, err := s.notifier.NotifyOwner(ctx, c.OwnerID, c.ID, notify.KindStatusUpdated, msg, string(st)); err != nil {
		return c, err
	}
	return c, nil
}

// ListForOwner pages through the owner's complaints, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID string, page Page) (List, error) {
	page = page.Normalize()
	items, total, err := s.store.List(ctx, Scope{OwnerID: ownerID}, page)
	if err != nil {
		return List{}, err
	}
	return newList(items, total, page), nil
}

// ListForJurisdiction pages through a station's complaints, optionally
// filtered by status. "All Stations" lists every station.
func (s *Service) ListForJurisdiction(ctx context.Context, station, status string, page Page) (List, error) {
	scope := Scope{Station: station}
	if strings.TrimSpace(status) != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return List{}, err
		}
		scope.Status = st
	}
	page = page.Normalize()
	items, total, err := s.store.List(ctx, scope, page)
	if err != nil {
		return List{}, err
	}
	return newList(items, total, page), nil
}

// OwnerStats counts the owner's complaints per status. Every status is present.
func (s *Service) OwnerStats(ctx context.Context, ownerID string) (map[Status]int, error) {
	counts, err := s.store.CountByStatus(ctx, Scope{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	out := make(map[Status]int, len(Statuses))
	for _, st := range Statuses {
		out[st] = counts[st]
	}
	return out, nil
}

// JurisdictionStats summarises a station's workload.
type JurisdictionStats struct {
	TotalComplaints int `json:"totalComplaints"`
	Pending         int `json:"pending"`
	InProgress      int `json:"inProgress"`
	Solved          int `json:"solved"`
	UnderReview     int `json:"underReview"`
}

// JurisdictionStats counts complaints of station per status.
func (s *Service) JurisdictionStats(ctx context.Context, station string) (JurisdictionStats, error) {
	counts, err := s.store.CountByStatus(ctx, Scope{Station: station})
	if err != nil {
		return JurisdictionStats{}, err
	}
	st := JurisdictionStats{
		Pending:     counts[StatusPending],
		InProgress:  counts[StatusInProgress],
		Solved:      counts[StatusSolved],
		UnderReview: counts[StatusUnderReview],
	}
	st.TotalComplaints = st.Pending + st.InProgress + st.Solved + st.UnderReview
	return st, nil
}

// DeleteForOwner removes every complaint of the owner.
func (s *Service) DeleteForOwner(ctx context.Context, ownerID string) error {
	return s.store.DeleteForOwner(ctx, ownerID)
}

// inScope reports whether a complaint filed at complaintStation is visible to
// an officer of station.
func inScope(station, complaintStation string) bool {
	return station == "" || station == geo.AllStations || station == complaintStation
}
