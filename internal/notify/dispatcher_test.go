package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"spcs.org/internal/geo"
	"spcs.org/internal/stream"
)

type published struct {
	group string
	ev    stream.Event
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, group string, ev stream.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{group: group, ev: ev})
	return 1, f.err
}

type failingStore struct{ *MemoryStore }

func (failingStore) CreateForUser(context.Context, *Notification) error {
	return errors.New("db down")
}

func (failingStore) CreateForStation(context.Context, *StationNotification) error {
	return errors.New("db down")
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNotifyOwnerPersistsThenPushes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub, WithClock(func() time.Time { return fixedNow }))

	n, err := d.NotifyOwner(ctx, "c1", "cmp1", KindStatusUpdated, "msg", "Solved")
	if err != nil {
		t.Fatalf("NotifyOwner: %v", err)
	}
	if n.Read || n.UserID != "c1" || n.Type != KindStatusUpdated {
		t.Fatalf("unexpected notification %+v", n)
	}
	list, _ := store.ListForUser(ctx, "c1")
	if len(list) != 1 {
		t.Fatalf("stored=%d", len(list))
	}
	if len(pub.sent) != 1 || pub.sent[0].group != "citizen:c1" {
		t.Fatalf("unexpected pushes %+v", pub.sent)
	}
	var payload map[string]any
	if err := json.Unmarshal(pub.sent[0].ev.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["status"] != "Solved" || payload["complaintId"] != "cmp1" || payload["type"] != "status_updated" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if pub.sent[0].ev.Name != stream.EventCitizenNotification {
		t.Fatalf("event name %q", pub.sent[0].ev.Name)
	}
}

func TestFailedWriteSuppressesPush(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	d := NewDispatcher(failingStore{NewMemoryStore()}, pub)

	if _, err := d.NotifyOwner(ctx, "c1", "cmp1", KindComplaintCreated, "msg", ""); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := d.NotifyJurisdiction(ctx, "Vashi", "cmp1", "t", "msg"); err == nil {
		t.Fatal("expected store error")
	}
	if len(pub.sent) != 0 {
		t.Fatalf("push must not happen after failed write, got %d", len(pub.sent))
	}
}

func TestPushFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := NewDispatcher(store, &fakePublisher{err: errors.New("redis down")})

	if _, err := d.NotifyOwner(ctx, "c1", "cmp1", KindComplaintAssigned, "msg", ""); err != nil {
		t.Fatalf("push failure must not surface: %v", err)
	}
	if list, _ := store.ListForUser(ctx, "c1"); len(list) != 1 {
		t.Fatalf("record missing after push failure")
	}
}

func TestNotifyJurisdictionGroups(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pub := &fakePublisher{}
	d := NewDispatcher(store, pub)

	n, err := d.NotifyJurisdiction(ctx, geo.Unassigned, "cmp1", "t", "msg")
	if err != nil || n != nil || len(pub.sent) != 0 {
		t.Fatalf("unassigned should be a no-op: n=%v err=%v pushes=%d", n, err, len(pub.sent))
	}

	if _, err := d.NotifyJurisdiction(ctx, "Vashi", "cmp1", "Theft", StationMessage("Theft")); err != nil {
		t.Fatalf("NotifyJurisdiction: %v", err)
	}
	if len(pub.sent) != 2 {
		t.Fatalf("pushes=%d, want 2", len(pub.sent))
	}
	if pub.sent[0].group != "jurisdiction:Vashi" || pub.sent[1].group != "jurisdiction:All Stations" {
		t.Fatalf("unexpected groups %q %q", pub.sent[0].group, pub.sent[1].group)
	}
	var payload map[string]any
	if err := json.Unmarshal(pub.sent[0].ev.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["jurisdictionName"] != "Vashi" || payload["title"] != "Theft" || payload["message"] != "New complaint raised: Theft" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestStationScopedReads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := NewDispatcher(store, &fakePublisher{})

	vashi, _ := d.NotifyJurisdiction(ctx, "Vashi", "c1", "a", "a")
	if _, err := d.NotifyJurisdiction(ctx, "Nerul", "c2", "b", "b"); err != nil {
		t.Fatalf("NotifyJurisdiction: %v", err)
	}
	if _, err := d.MarkStationRead(ctx, "Nerul", vashi.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across stations, got %v", err)
	}
	if list, _ := d.ListForStation(ctx, "Vashi"); len(list) != 1 {
		t.Fatalf("Vashi sees %d", len(list))
	}
	if list, _ := d.ListForStation(ctx, geo.AllStations); len(list) != 2 {
		t.Fatalf("All Stations sees %d", len(list))
	}
	list, err := d.MarkAllStationRead(ctx, "Vashi")
	if err != nil || len(list) != 1 || !list[0].Read {
		t.Fatalf("MarkAllStationRead: %+v err=%v", list, err)
	}
	nerul, _ := d.ListForStation(ctx, "Nerul")
	if nerul[0].Read {
		t.Fatal("Nerul notification should stay unread")
	}
}

func TestCitizenReadAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	d := NewDispatcher(store, &fakePublisher{})

	mine, _ := d.NotifyOwner(ctx, "c1", "x", KindComplaintCreated, "m1", "")
	if _, err := d.NotifyOwner(ctx, "c2", "y", KindComplaintCreated, "m2", ""); err != nil {
		t.Fatalf("NotifyOwner: %v", err)
	}
	if _, err := d.MarkRead(ctx, "c2", mine.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign mark read: expected ErrNotFound, got %v", err)
	}
	got, err := d.MarkRead(ctx, "c1", mine.ID)
	if err != nil || !got.Read {
		t.Fatalf("MarkRead: %+v err=%v", got, err)
	}
	if err := d.DeleteForUser(ctx, "c1"); err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if list, _ := d.ListForUser(ctx, "c1"); len(list) != 0 {
		t.Fatalf("expected no notifications after delete, got %d", len(list))
	}
	if list, _ := d.ListForUser(ctx, "c2"); len(list) != 1 {
		t.Fatalf("other citizen affected: %d", len(list))
	}
}

func TestTemplates(t *testing.T) {
	d := 2.345
	cases := []struct {
		got, want string
	}{
		{CreatedMessage("Theft", "Vashi", &d, true), `Your complaint "Theft" was sent to Vashi Police Station (2.3 km away).`},
		{CreatedMessage("Theft", "Vashi", nil, true), `Your complaint "Theft" was sent to Vashi Police Station.`},
		{CreatedMessage("Theft", geo.Unassigned, nil, false), `Complaint "Theft" submitted and pending review.`},
		{StationMessage("Theft"), `New complaint raised: Theft`},
		{AssignedMessage("Theft", "rao"), `Your complaint "Theft" has been assigned to Officer rao and is now in progress.`},
		{StatusMessage("Theft", "Solved", "rao"), `Status of your complaint "Theft" has been updated to Solved by Officer rao.`},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("got %q, want %q", tc.got, tc.want)
		}
	}
}
