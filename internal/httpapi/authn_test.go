package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"spcs.org/internal/auth"
)

func newAuthAPI(t *testing.T) (*API, *auth.Service) {
	t.Helper()
	store := auth.NewMemoryStore()
	sessions, err := auth.NewSessions(store, auth.WithSecret("test-secret"))
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	svc, err := auth.NewService(store, sessions)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return New(Deps{Auth: svc}), svc
}

func TestRequireKindAllowsMatchingKind(t *testing.T) {
	api, svc := newAuthAPI(t)
	c, sess, err := svc.RegisterCitizen(context.Background(), auth.CitizenRegistration{
		Username: "asha", Email: "asha@example.com", Password: "pw",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	var got auth.Principal
	handler := api.citizen(func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		got = p
		if fromCtx, ok := auth.PrincipalFromContext(r.Context()); !ok || fromCtx.ID != p.ID {
			t.Fatalf("principal missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.ID != c.ID || got.Kind != auth.KindCitizen {
		t.Fatalf("unexpected principal %+v", got)
	}
}

func TestRequireKindRejectsOtherKind(t *testing.T) {
	api, svc := newAuthAPI(t)
	_, sess, err := svc.RegisterCitizen(context.Background(), auth.CitizenRegistration{
		Username: "asha", Email: "asha@example.com", Password: "pw",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	handler := api.officer(func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		t.Fatalf("handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/officer/profile", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireKindRejectsMissingToken(t *testing.T) {
	api, _ := newAuthAPI(t)
	handler := api.citizen(func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		t.Fatalf("handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		token, err := extractBearerToken(tc.header)
		if (err == nil) != tc.ok || token != tc.token {
			t.Fatalf("%q: got %q err=%v", tc.header, token, err)
		}
	}
}
