package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"spcs.org/internal/geo"
	"spcs.org/internal/ids"
	"spcs.org/internal/obs"
	"spcs.org/internal/stream"
)

const (
	channelCitizen      = "citizen"
	channelJurisdiction = "jurisdiction"
)

// Dispatcher writes the durable record first and only then pushes it to the
// live subscribers. A failed write suppresses the push; a failed push is
// logged and otherwise ignored.
type Dispatcher struct {
	store Store
	pub   stream.Publisher
	now   func() time.Time
}

// Option configures Dispatcher behavior.
type Option func(*Dispatcher)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.now = fn
		}
	}
}

func NewDispatcher(store Store, pub stream.Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{store: store, pub: pub, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type citizenPayload struct {
	Type        Kind      `json:"type"`
	ComplaintID string    `json:"complaintId"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status,omitempty"`
}

type jurisdictionPayload struct {
	ComplaintID      string    `json:"complaintId"`
	Title            string    `json:"title"`
	JurisdictionName string    `json:"jurisdictionName"`
	CreatedAt        time.Time `json:"createdAt"`
	Message          string    `json:"message"`
}

// NotifyOwner records a citizen notification and pushes it to the citizen's
// group. status is included in the pushed payload when non-empty.
func (d *Dispatcher) NotifyOwner(ctx context.Context, ownerID, complaintID string, kind Kind, message, status string) (*Notification, error) {
	n := &Notification{
		ID:          ids.New(),
		UserID:      ownerID,
		ComplaintID: complaintID,
		Type:        kind,
		Message:     message,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.store.CreateForUser(ctx, n); err != nil {
		obs.NotificationDispatched(channelCitizen, "store_failed")
		return nil, fmt.Errorf("store notification: %w", err)
	}
	obs.NotificationDispatched(channelCitizen, "stored")

	ev, err := stream.NewEvent(stream.EventCitizenNotification, citizenPayload{
		Type:        kind,
		ComplaintID: complaintID,
		Message:     message,
		CreatedAt:   n.CreatedAt,
		Status:      status,
	})
	if err == nil {
		_, err = d.pub.Publish(ctx, stream.CitizenGroup(ownerID), ev)
	}
	d.pushed(channelCitizen, n.ID, err)
	return n, nil
}

// NotifyJurisdiction records a station notification and pushes it to the
// station's officers and to officers covering all stations. Unassigned
// complaints produce nothing.
func (d *Dispatcher) NotifyJurisdiction(ctx context.Context, station, complaintID, title, message string) (*StationNotification, error) {
	station = strings.TrimSpace(station)
	if station == "" || station == geo.Unassigned {
		return nil, nil
	}
	n := &StationNotification{
		ID:          ids.New(),
		Station:     station,
		ComplaintID: complaintID,
		Message:     message,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.store.CreateForStation(ctx, n); err != nil {
		obs.NotificationDispatched(channelJurisdiction, "store_failed")
		return nil, fmt.Errorf("store station notification: %w", err)
	}
	obs.NotificationDispatched(channelJurisdiction, "stored")

	ev, err := stream.NewEvent(stream.EventNewComplaint, jurisdictionPayload{
		ComplaintID:      complaintID,
		Title:            title,
		JurisdictionName: station,
		CreatedAt:        n.CreatedAt,
		Message:          message,
	})
	if err == nil {
		groups := []string{stream.JurisdictionGroup(station)}
		if station != geo.AllStations {
			groups = append(groups, stream.JurisdictionGroup(geo.AllStations))
		}
		for _, g := range groups {
			if _, perr := d.pub.Publish(ctx, g, ev); perr != nil {
				err = perr
			}
		}
	}
	d.pushed(channelJurisdiction, n.ID, err)
	return n, nil
}

func (d *Dispatcher) pushed(channel, id string, err error) {
	if err != nil {
		obs.NotificationDispatched(channel, "push_failed")
		obs.Warn("notification_push_failed", map[string]any{"channel": channel, "notification_id": id, "error": err})
		return
	}
	obs.NotificationDispatched(channel, "pushed")
}

// ListForUser returns the citizen's notifications, newest first.
func (d *Dispatcher) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	return d.store.ListForUser(ctx, userID)
}

// MarkRead marks one of the citizen's notifications read.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, id string) (*Notification, error) {
	return d.store.MarkUserRead(ctx, userID, id)
}

// MarkAllRead marks every notification of the citizen read and returns the
// updated list.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) ([]Notification, error) {
	if err := d.store.MarkAllUserRead(ctx, userID); err != nil {
		return nil, err
	}
	return d.store.ListForUser(ctx, userID)
}

// DeleteForUser removes every notification of the citizen.
func (d *Dispatcher) DeleteForUser(ctx context.Context, userID string) error {
	return d.store.DeleteForUser(ctx, userID)
}

// ListForStation returns the newest station notifications.
func (d *Dispatcher) ListForStation(ctx context.Context, station string) ([]StationNotification, error) {
	return d.store.ListForStation(ctx, station, StationListLimit)
}

// MarkStationRead marks one station notification read.
func (d *Dispatcher) MarkStationRead(ctx context.Context, station, id string) (*StationNotification, error) {
	return d.store.MarkStationRead(ctx, station, id)
}

// MarkAllStationRead marks all station notifications read and returns the
// updated list.
func (d *Dispatcher) MarkAllStationRead(ctx context.Context, station string) ([]StationNotification, error) {
	if err := d.store.MarkAllStationRead(ctx, station); err != nil {
		return nil, err
	}
	return d.store.ListForStation(ctx, station, StationListLimit)
}
