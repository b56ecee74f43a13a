package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"spcs.org/internal/auth"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcastReachesOnlyGroupMembers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry()

	a := r.Subscribe(ctx, CitizenGroup("a"))
	b := r.Subscribe(ctx, CitizenGroup("b"))

	ev, err := NewEvent(EventCitizenNotification, map[string]string{"message": "hi"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if n := r.Broadcast(CitizenGroup("a"), ev); n != 1 {
		t.Fatalf("delivered=%d, want 1", n)
	}
	got := recv(t, a)
	if got.Name != EventCitizenNotification || string(got.Data) != `{"message":"hi"}` {
		t.Fatalf("unexpected event %+v", got)
	}
	select {
	case ev := <-b:
		t.Fatalf("b should not receive %+v", ev)
	default:
	}
	if n := r.Broadcast(CitizenGroup("nobody"), ev); n != 0 {
		t.Fatalf("empty group delivered=%d", n)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry()
	_ = r.Subscribe(ctx, "g")

	ev := Event{Name: "x", Data: []byte(`{}`)}
	delivered := 0
	for i := 0; i < subscriberBuffer+5; i++ {
		delivered += r.Broadcast("g", ev)
	}
	if delivered != subscriberBuffer {
		t.Fatalf("delivered=%d, want %d", delivered, subscriberBuffer)
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRegistry()
	ch := r.Subscribe(ctx, "g")
	if r.Members("g") != 1 {
		t.Fatalf("members=%d", r.Members("g"))
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if r.Members("g") != 0 {
		t.Fatalf("members=%d after cancel", r.Members("g"))
	}
}

type fakeVerifier struct {
	p   auth.Principal
	err error
}

func (f fakeVerifier) VerifyKind(_ context.Context, _ string, kind auth.Kind) (auth.Principal, error) {
	if f.err != nil {
		return auth.Principal{}, f.err
	}
	if f.p.Kind != kind {
		return auth.Principal{}, auth.ErrWrongKind
	}
	return f.p, nil
}

func TestJoin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRegistry()

	sub, err := r.Join(ctx, fakeVerifier{p: auth.Principal{ID: "c1", Kind: auth.KindCitizen}}, "user", "tok")
	if err != nil {
		t.Fatalf("Join citizen: %v", err)
	}
	if sub.Group != "citizen:c1" {
		t.Fatalf("group=%q", sub.Group)
	}

	sub, err = r.Join(ctx, fakeVerifier{p: auth.Principal{ID: "o1", Kind: auth.KindOfficer, Station: "Vashi"}}, "officer", "tok")
	if err != nil || sub.Group != "jurisdiction:Vashi" {
		t.Fatalf("Join officer: group=%q err=%v", sub.Group, err)
	}
	sub, err = r.Join(ctx, fakeVerifier{p: auth.Principal{ID: "o2", Kind: auth.KindOfficer}}, "police", "tok")
	if err != nil || sub.Group != "jurisdiction:All Stations" {
		t.Fatalf("Join officer without station: group=%q err=%v", sub.Group, err)
	}

	before := r.Members("citizen:c9")
	if _, err := r.Join(ctx, fakeVerifier{err: auth.ErrExpired}, "citizen", "tok"); !errors.Is(err, auth.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := r.Join(ctx, fakeVerifier{p: auth.Principal{ID: "c9", Kind: auth.KindCitizen}}, "officer", "tok"); !errors.Is(err, auth.ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
	if _, err := r.Join(ctx, fakeVerifier{}, "admin", "tok"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if r.Members("citizen:c9") != before {
		t.Fatal("rejected join must not register a subscription")
	}
}
