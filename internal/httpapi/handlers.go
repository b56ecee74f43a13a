package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"spcs.org/internal/audit"
	"spcs.org/internal/auth"
	"spcs.org/internal/complaint"
	"spcs.org/internal/geo"
	"spcs.org/internal/notify"
	"spcs.org/internal/obs"
	"spcs.org/internal/otp"
	"spcs.org/internal/stream"
)

const serviceName = "spcs-api"

// ReadyCheck checks the backing stores. Nil members are skipped.
type ReadyCheck struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyCheck) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Auth          *auth.Service
	OTP           *otp.Service
	Complaints    *complaint.Service
	Notifications *notify.Dispatcher
	Stations      *geo.Resolver
	Realtime      *stream.Registry
	Ready         ReadyCheck
	Version       string
}

// Option configures the API.
type Option func(*API)

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSecond > 0 {
			a.ratePerSec = perSecond
		}
	}
}

// WithAllowedOrigins adds CORS origins on top of localhost.
func WithAllowedOrigins(origins ...string) Option {
	return func(a *API) {
		for _, o := range origins {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				a.origins = append(a.origins, o)
			}
		}
	}
}

// WithHeartbeat sets the interval of keep-alive comments on realtime streams.
func WithHeartbeat(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	deps Deps

	rateBurst  int
	ratePerSec int
	origins    []string
	heartbeat  time.Duration
	maxBody    int64
}

func New(deps Deps, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		deps:       deps,
		rateBurst:  20,
		ratePerSec: 10,
		heartbeat:  25 * time.Second,
		maxBody:    1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	m := a.mux

	// health/ready/info
	m.HandleFunc("GET /healthz", a.Healthz)
	m.HandleFunc("GET /readyz", a.Ready)
	m.HandleFunc("GET /v1/info", a.Info)
	m.Handle("GET /metrics", obs.Handler())

	// public auth
	m.HandleFunc("POST /auth/register", a.registerCitizen)
	m.HandleFunc("POST /auth/login", a.loginCitizen)
	m.HandleFunc("POST /officer/register", a.registerOfficer)
	m.HandleFunc("POST /officer/login", a.loginOfficer)
	m.HandleFunc("POST /2fa/send-code", a.sendCode)
	m.HandleFunc("POST /2fa/verify-code", a.verifyCode)
	m.HandleFunc("GET /realtime", a.Realtime)

	// citizen
	m.Handle("POST /complaints", a.citizen(a.createComplaint))
	m.Handle("GET /complaints", a.citizen(a.listComplaints))
	m.Handle("GET /complaints/stats", a.citizen(a.complaintStats))
	m.Handle("GET /complaints/{id}", a.citizen(a.getComplaint))
	m.Handle("PUT /complaints/{id}", a.citizen(a.updateComplaint))
	m.Handle("GET /notifications", a.citizen(a.listNotifications))
	m.Handle("PUT /notifications/read-all", a.citizen(a.readAllNotifications))
	m.Handle("PUT /notifications/{id}/read", a.citizen(a.readNotification))
	m.Handle("GET /profile", a.citizen(a.getProfile))
	m.Handle("PUT /profile", a.citizen(a.updateProfile))
	m.Handle("DELETE /profile", a.citizen(a.deleteProfile))
	m.Handle("POST /auth/change-password", a.citizen(a.changeCitizenPassword))

	// officer
	m.Handle("GET /officer/complaints", a.officer(a.listJurisdictionComplaints))
	m.Handle("POST /officer/complaints/{id}/assign", a.officer(a.assignComplaint))
	m.Handle("PUT /officer/complaints/{id}/status", a.officer(a.setComplaintStatus))
	m.Handle("GET /officer/stats", a.officer(a.jurisdictionStats))
	m.Handle("GET /officer/notifications", a.officer(a.listStationNotifications))
	m.Handle("PUT /officer/notifications/read-all", a.officer(a.readAllStationNotifications))
	m.Handle("PUT /officer/notifications/{id}/read", a.officer(a.readStationNotification))
	m.Handle("GET /officer/stations", a.officer(a.listStations))
	m.Handle("POST /officer/stations/bulk", a.officer(a.bulkUpsertStations))
	m.Handle("POST /officer/stations/request-update", a.officer(a.requestStationUpdate))
	m.Handle("GET /officer/profile", a.officer(a.getOfficerProfile))
	m.Handle("PUT /officer/profile", a.officer(a.updateOfficerProfile))
	m.Handle("POST /officer/change-password", a.officer(a.changeOfficerPassword))
	m.Handle("POST /officer/2fa", a.officer(a.setTwoFactor))
	m.Handle("GET /officer/officers", a.officer(a.listOfficers))
	m.Handle("POST /officer/logout-all", a.officer(a.logoutAll))

	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.origins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.deps.Version,
	})
}

// --- helpers ---

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Warn("audit_failed", map[string]any{"event": event, "error": err})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func parsePage(r *http.Request) (complaint.Page, error) {
	q := r.URL.Query()
	var p complaint.Page
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"limit", &p.Limit}} {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return complaint.Page{}, errors.New(f.name + " must be a positive integer")
		}
		*f.dst = v
	}
	return p, nil
}
