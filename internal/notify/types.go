// Package notify records notifications durably and pushes them to live
// subscribers.
package notify

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("notify: not found")

// Kind classifies citizen notifications.
type Kind string

const (
	KindComplaintCreated  Kind = "complaint_created"
	KindComplaintAssigned Kind = "complaint_assigned"
	KindStatusUpdated     Kind = "status_updated"
)

// StationListLimit caps station notification listings.
const StationListLimit = 200

// Notification is addressed to one citizen.
type Notification struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	ComplaintID string    `json:"complaintId,omitempty"`
	Type        Kind      `json:"type"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// StationNotification is addressed to everyone working a station.
type StationNotification struct {
	ID          string    `json:"id"`
	Station     string    `json:"station"`
	ComplaintID string    `json:"complaintId,omitempty"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store persists both notification kinds. A station of "All Stations" in the
// station methods addresses every station.
type Store interface {
	CreateForUser(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string) ([]Notification, error)
	MarkUserRead(ctx context.Context, userID, id string) (*Notification, error)
	MarkAllUserRead(ctx context.Context, userID string) error
	DeleteForUser(ctx context.Context, userID string) error

	CreateForStation(ctx context.Context, n *StationNotification) error
	ListForStation(ctx context.Context, station string, limit int) ([]StationNotification, error)
	MarkStationRead(ctx context.Context, station, id string) (*StationNotification, error)
	MarkAllStationRead(ctx context.Context, station string) error
}
