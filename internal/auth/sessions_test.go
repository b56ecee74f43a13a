package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret"

func newTestSessions(t *testing.T, store Store, opts ...SessionOption) *Sessions {
	t.Helper()
	sessions, err := NewSessions(store, append([]SessionOption{WithSecret(testSecret)}, opts...)...)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	return sessions
}

func TestNewSessionsRequiresSecret(t *testing.T) {
	if _, err := NewSessions(NewMemoryStore()); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := NewSessions(NewMemoryStore(), WithSecret("   ")); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestSessionsCitizenRoundTrip(t *testing.T) {
	sessions := newTestSessions(t, NewMemoryStore())
	token, expiresAt, err := sessions.Issue(Principal{ID: "c1", Kind: KindCitizen, Username: "asha", Email: "asha@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := time.Until(expiresAt); d < 6*24*time.Hour || d > 7*24*time.Hour {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}
	p, err := sessions.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ID != "c1" || p.Kind != KindCitizen || p.Email != "asha@example.com" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestSessionsExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := newTestSessions(t, NewMemoryStore(), WithSessionClock(func() time.Time { return now }))
	token, _, err := sessions.Issue(Principal{ID: "c1", Kind: KindCitizen})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	now = now.Add(7*24*time.Hour - time.Minute)
	if _, err := sessions.Verify(context.Background(), token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := sessions.Verify(context.Background(), token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestSessionsRejectsForeignSignature(t *testing.T) {
	store := NewMemoryStore()
	other, err := NewSessions(store, WithSecret("other-secret"))
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	token, _, err := other.Issue(Principal{ID: "c1", Kind: KindCitizen})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sessions := newTestSessions(t, store)
	if _, err := sessions.Verify(context.Background(), token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestSessionsMalformed(t *testing.T) {
	sessions := newTestSessions(t, NewMemoryStore())
	for _, token := range []string{"", "abc", "a.b.c"} {
		if _, err := sessions.Verify(context.Background(), token); !errors.Is(err, ErrMalformed) {
			t.Fatalf("token %q: expected ErrMalformed, got %v", token, err)
		}
	}
}

func TestSessionsWrongKind(t *testing.T) {
	sessions := newTestSessions(t, NewMemoryStore())
	token, _, err := sessions.Issue(Principal{ID: "c1", Kind: KindCitizen})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := sessions.VerifyKind(context.Background(), token, KindOfficer); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
	if !IsTokenError(ErrWrongKind) {
		t.Fatal("ErrWrongKind should be a token error")
	}
}

func TestSessionsOfficerVersionCheck(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sessions := newTestSessions(t, store)

	o := &Officer{Username: "rao", Email: "rao@police.in", PasswordHash: "x", Station: "Vashi"}
	if err := store.Officers(ctx).Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	token, _, err := sessions.Issue(OfficerPrincipal(o))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	p, err := sessions.VerifyKind(ctx, token, KindOfficer)
	if err != nil {
		t.Fatalf("VerifyKind: %v", err)
	}
	if p.Station != "Vashi" || p.Version != 1 {
		t.Fatalf("unexpected principal %+v", p)
	}

	// Stored version moved on: token minted at version 1 is dead.
	if v, err := store.Officers(ctx).BumpSessionVersion(ctx, o.ID); err != nil || v != 2 {
		t.Fatalf("BumpSessionVersion: v=%d err=%v", v, err)
	}
	if _, err := sessions.Verify(ctx, token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// Missing ver claim is treated as a revoked session.
	legacy, _, err := sessions.Issue(Principal{ID: o.ID, Kind: KindOfficer, Station: "Vashi"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := sessions.Verify(ctx, legacy); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for versionless token, got %v", err)
	}

	// Officer gone.
	ghost, _, err := sessions.Issue(Principal{ID: "missing", Kind: KindOfficer, Version: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := sessions.Verify(ctx, ghost); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for unknown officer, got %v", err)
	}
}

func TestSessionsRefreshStationFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sessions := newTestSessions(t, store)
	o := &Officer{Username: "rao", Email: "rao@police.in", PasswordHash: "x", Station: "Vashi"}
	if err := store.Officers(ctx).Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	stale := OfficerPrincipal(o)
	stale.Station = "Nerul"
	token, _, err := sessions.Issue(stale)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	p, err := sessions.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Station != "Vashi" {
		t.Fatalf("expected station from store, got %q", p.Station)
	}
}
