// Package stream fans realtime events out to per-recipient and per-station
// subscription groups.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"spcs.org/internal/auth"
	"spcs.org/internal/geo"
	"spcs.org/internal/obs"
)

// Event names delivered to clients.
const (
	EventCitizenNotification = "citizen:notification"
	EventNewComplaint        = "jurisdiction:new_complaint"
)

const subscriberBuffer = 16

var ErrInvalidRole = errors.New("stream: invalid role")

// Event is a named payload pushed to subscribers.
type Event struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals v as the event payload.
func NewEvent(name string, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

// CitizenGroup is the private group of one citizen.
func CitizenGroup(id string) string { return "citizen:" + id }

// JurisdictionGroup is the group of officers working station.
func JurisdictionGroup(station string) string { return "jurisdiction:" + station }

// Publisher delivers an event to every member of a group and reports how many
// local subscribers received it.
type Publisher interface {
	Publish(ctx context.Context, group string, ev Event) (int, error)
}

var _ Publisher = (*Registry)(nil)

// Registry tracks live subscriptions by group.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[int]chan Event
	next   int
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]map[int]chan Event)}
}

// Subscribe registers a subscriber to group and returns a channel which will
// receive events. The channel is closed when ctx ends.
func (r *Registry) Subscribe(ctx context.Context, group string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)

	r.mu.Lock()
	id := r.next
	r.next++
	members, ok := r.groups[group]
	if !ok {
		members = make(map[int]chan Event)
		r.groups[group] = members
	}
	members[id] = ch
	r.mu.Unlock()
	obs.SubscriberJoined()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.groups[group], id)
		if len(r.groups[group]) == 0 {
			delete(r.groups, group)
		}
		close(ch)
		r.mu.Unlock()
		obs.SubscriberLeft()
	}()

	return ch
}

// Broadcast delivers ev to every subscriber of group without blocking. Slow
// subscribers miss the event. It returns the number of deliveries.
func (r *Registry) Broadcast(group string, ev Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ch := range r.groups[group] {
		select {
		case ch <- ev:
			n++
		default:
		}
	}
	return n
}

// Publish implements Publisher for a single instance.
func (r *Registry) Publish(_ context.Context, group string, ev Event) (int, error) {
	return r.Broadcast(group, ev), nil
}

// Members reports the number of live subscribers in group.
func (r *Registry) Members(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Verifier checks a session token for the wanted principal kind.
type Verifier interface {
	VerifyKind(ctx context.Context, token string, kind auth.Kind) (auth.Principal, error)
}

// Subscription is an authenticated membership of one group.
type Subscription struct {
	Group     string
	Principal auth.Principal
	Events    <-chan Event
}

// Join authenticates token for role and subscribes to the matching group.
// Nothing is registered when authentication fails.
func (r *Registry) Join(ctx context.Context, v Verifier, role, token string) (Subscription, error) {
	kind, ok := auth.ParseKind(role)
	if !ok {
		return Subscription{}, ErrInvalidRole
	}
	p, err := v.VerifyKind(ctx, token, kind)
	if err != nil {
		return Subscription{}, err
	}
	var group string
	switch kind {
	case auth.KindCitizen:
		group = CitizenGroup(p.ID)
	case auth.KindOfficer:
		station := p.Station
		if station == "" {
			station = geo.AllStations
		}
		group = JurisdictionGroup(station)
	}
	return Subscription{Group: group, Principal: p, Events: r.Subscribe(ctx, group)}, nil
}
