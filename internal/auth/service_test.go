package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := NewService(store, newTestSessions(t, store),
		WithClock(func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestRegisterAndLoginCitizen(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	c, sess, err := svc.RegisterCitizen(ctx, CitizenRegistration{
		Username: "asha", Email: "  Asha@Example.COM ", Password: "s3cret", Phone: "98200 12345",
	})
	if err != nil {
		t.Fatalf("RegisterCitizen: %v", err)
	}
	if c.Email != "asha@example.com" || c.Phone != "+919820012345" {
		t.Fatalf("unexpected citizen %+v", c)
	}
	if sess.Token == "" {
		t.Fatal("expected token")
	}
	if _, _, err := svc.RegisterCitizen(ctx, CitizenRegistration{Username: "a2", Email: "asha@example.com", Password: "x"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, _, err := svc.RegisterCitizen(ctx, CitizenRegistration{Email: "b@example.com", Password: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	got, sess, err := svc.LoginCitizen(ctx, "ASHA@example.com", "s3cret")
	if err != nil {
		t.Fatalf("LoginCitizen: %v", err)
	}
	if got.ID != c.ID {
		t.Fatalf("logged in as %s, want %s", got.ID, c.ID)
	}
	p, err := svc.Sessions().VerifyKind(ctx, sess.Token, KindCitizen)
	if err != nil || p.ID != c.ID {
		t.Fatalf("VerifyKind: p=%+v err=%v", p, err)
	}
	if _, _, err := svc.LoginCitizen(ctx, "asha@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.LoginCitizen(ctx, "nobody@example.com", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestOfficerLoginStationAndHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	o, _, err := svc.RegisterOfficer(ctx, OfficerRegistration{
		Username: "rao", Email: "rao@police.in", Password: "pw", Station: "Vashi",
	})
	if err != nil {
		t.Fatalf("RegisterOfficer: %v", err)
	}
	if o.Status != OfficerActive || o.SessionVersion != 1 {
		t.Fatalf("unexpected officer defaults %+v", o)
	}
	if _, _, err := svc.RegisterOfficer(ctx, OfficerRegistration{Username: "x", Email: "x@police.in", Password: "pw"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without station, got %v", err)
	}

	if _, _, err := svc.LoginOfficer(ctx, "rao@police.in", "pw", "Nerul", LoginRecord{}); !errors.Is(err, ErrStationMismatch) {
		t.Fatalf("expected ErrStationMismatch, got %v", err)
	}

	for i := 0; i < MaxLoginHistory+3; i++ {
		if _, _, err := svc.LoginOfficer(ctx, "rao@police.in", "pw", "vashi", LoginRecord{IP: "10.0.0.1", UserAgent: "test"}); err != nil {
			t.Fatalf("LoginOfficer: %v", err)
		}
	}
	got, err := svc.Officer(ctx, o.ID)
	if err != nil {
		t.Fatalf("Officer: %v", err)
	}
	if len(got.LoginHistory) != MaxLoginHistory {
		t.Fatalf("history len=%d, want %d", len(got.LoginHistory), MaxLoginHistory)
	}
	if got.LastLoginIP != "10.0.0.1" || got.LastLoginAt == nil {
		t.Fatalf("login metadata not recorded: %+v", got)
	}
}

func TestLogoutAllRevokesOutstandingTokens(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	o, first, err := svc.RegisterOfficer(ctx, OfficerRegistration{
		Username: "rao", Email: "rao@police.in", Password: "pw", Station: "Vashi",
	})
	if err != nil {
		t.Fatalf("RegisterOfficer: %v", err)
	}
	v, err := svc.LogoutAll(ctx, o.ID)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if v != 2 {
		t.Fatalf("version=%d, want 2", v)
	}
	if _, err := svc.Sessions().Verify(ctx, first.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	_, second, err := svc.LoginOfficer(ctx, "rao@police.in", "pw", "Vashi", LoginRecord{})
	if err != nil {
		t.Fatalf("LoginOfficer: %v", err)
	}
	p, err := svc.Sessions().Verify(ctx, second.Token)
	if err != nil {
		t.Fatalf("Verify new token: %v", err)
	}
	if p.Version != 2 {
		t.Fatalf("principal version=%d, want 2", p.Version)
	}
}

func TestChangePasswordAndProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	c, _, err := svc.RegisterCitizen(ctx, CitizenRegistration{Username: "asha", Email: "asha@example.com", Password: "old"})
	if err != nil {
		t.Fatalf("RegisterCitizen: %v", err)
	}
	if err := svc.ChangeCitizenPassword(ctx, c.ID, "bad", "new"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangeCitizenPassword(ctx, c.ID, "old", "new"); err != nil {
		t.Fatalf("ChangeCitizenPassword: %v", err)
	}
	if _, _, err := svc.LoginCitizen(ctx, "asha@example.com", "new"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	phone := "+44 20 7946 0958"
	email := "ASHA.K@example.com"
	updated, err := svc.UpdateCitizenProfile(ctx, c.ID, CitizenPatch{Phone: &phone, Email: &email})
	if err != nil {
		t.Fatalf("UpdateCitizenProfile: %v", err)
	}
	if updated.Email != "asha.k@example.com" || updated.Phone != "+44 20 7946 0958" || updated.Username != "asha" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	o, _, err := svc.RegisterOfficer(ctx, OfficerRegistration{Username: "rao", Email: "rao@police.in", Password: "pw", Station: "Vashi"})
	if err != nil {
		t.Fatalf("RegisterOfficer: %v", err)
	}
	bad := "Sleeping"
	if _, err := svc.UpdateOfficerProfile(ctx, o.ID, OfficerPatch{Status: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	onDuty := OfficerOnDuty
	got, err := svc.UpdateOfficerProfile(ctx, o.ID, OfficerPatch{Status: &onDuty})
	if err != nil || got.Status != OfficerOnDuty {
		t.Fatalf("UpdateOfficerProfile: %+v err=%v", got, err)
	}
}

func TestRequestStationUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.RequestStationUpdate(context.Background(), "o1", " ", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	req, err := svc.RequestStationUpdate(context.Background(), "o1", "Vashi", "wrong pin")
	if err != nil {
		t.Fatalf("RequestStationUpdate: %v", err)
	}
	if req.Status != "Pending" || req.ID == "" {
		t.Fatalf("unexpected request %+v", req)
	}
}
