// Package complaint stores citizen complaints and drives their lifecycle.
package complaint

import (
	"context"
	"errors"
	"strings"
	"time"

	"spcs.org/internal/geo"
)

var (
	ErrNotFound      = errors.New("complaint: not found")
	ErrInvalidInput  = errors.New("complaint: invalid input")
	ErrInvalidStatus = errors.New("complaint: invalid status")
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusUnderReview Status = "Under Review"
	StatusInProgress  Status = "In Progress"
	StatusSolved      Status = "Solved"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusInProgress, StatusSolved, StatusUnderReview}

// ParseStatus accepts the exact status names.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	for _, v := range Statuses {
		if s == v {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// Complaint is a citizen report routed to a station.
type Complaint struct {
	ID                string        `json:"id"`
	OwnerID           string        `json:"userId"`
	Title             string        `json:"title"`
	Type              string        `json:"type"`
	Description       string        `json:"description"`
	Category          string        `json:"category,omitempty"`
	Contact           string        `json:"contact,omitempty"`
	PhotoURL          string        `json:"photoUrl,omitempty"`
	Location          *geo.Location `json:"location,omitempty"`
	Status            Status        `json:"status"`
	Station           string        `json:"station"`
	StationID         string        `json:"stationId,omitempty"`
	NearestDistanceKm *float64      `json:"nearestDistanceKm,omitempty"`
	AssignedTo        string        `json:"assignedTo,omitempty"`
	AssignedOfficer   string        `json:"assignedOfficer,omitempty"`
	AssignedAt        *time.Time    `json:"assignedAt,omitempty"`
	LastUpdatedBy     string        `json:"lastUpdatedBy,omitempty"`
	LastUpdatedAt     *time.Time    `json:"lastUpdatedAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Fields is what a citizen submits. A non-empty Station bypasses routing.
type Fields struct {
	Title       string        `json:"title"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Contact     string        `json:"contact"`
	PhotoURL    string        `json:"photoUrl"`
	Location    *geo.Location `json:"location"`
	Station     string        `json:"station"`
}

// Patch lists the fields an owner may change. Nil means untouched.
type Patch struct {
	Title       *string       `json:"title"`
	Type        *string       `json:"type"`
	Description *string       `json:"description"`
	Category    *string       `json:"category"`
	Contact     *string       `json:"contact"`
	PhotoURL    *string       `json:"photoUrl"`
	Location    *geo.Location `json:"location"`
}

func (p Patch) empty() bool {
	return p.Title == nil && p.Type == nil && p.Description == nil && p.Category == nil &&
		p.Contact == nil && p.PhotoURL == nil && p.Location == nil
}

// Apply copies the set fields onto c.
func (p Patch) Apply(c *Complaint) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Title, p.Title)
	set(&c.Type, p.Type)
	set(&c.Description, p.Description)
	set(&c.Category, p.Category)
	set(&c.Contact, p.Contact)
	set(&c.PhotoURL, p.PhotoURL)
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
}

// Pagination defaults.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Page selects a slice of a newest-first listing.
type Page struct {
	Page  int
	Limit int
}

// Normalize fills defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// List is one page of complaints.
type List struct {
	Complaints  []Complaint `json:"complaints"`
	Total       int         `json:"total"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
}

func newList(items []Complaint, total int, p Page) List {
	if items == nil {
		items = []Complaint{}
	}
	return List{
		Complaints:  items,
		Total:       total,
		TotalPages:  (total + p.Limit - 1) / p.Limit,
		CurrentPage: p.Page,
	}
}

// Scope restricts queries to an owner or a station. Station "All Stations"
// matches every station; empty fields do not filter.
type Scope struct {
	OwnerID string
	Station string
	Status  Status
}

// Store persists complaints.
type Store interface {
	Create(ctx context.Context, c *Complaint) error
	Get(ctx context.Context, id string) (*Complaint, error)
	UpdateOwnerFields(ctx context.Context, id, ownerID string, patch Patch) (*Complaint, error)
	// Assign and SetStatus return ErrNotFound when the complaint lies outside station.
	Assign(ctx context.Context, id, station, officerID, officerName string, at time.Time) (*Complaint, error)
	SetStatus(ctx context.Context, id, station string, status Status, officerID string, at time.Time) (*Complaint, error)
	List(ctx context.Context, scope Scope, page Page) ([]Complaint, int, error)
	CountByStatus(ctx context.Context, scope Scope) (map[Status]int, error)
	DeleteForOwner(ctx context.Context, ownerID string) error
}
