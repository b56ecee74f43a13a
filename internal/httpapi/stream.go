package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"spcs.org/internal/auth"
	"spcs.org/internal/obs"
	"spcs.org/internal/stream"
)

var errStationMoved = errors.New("officer station changed")

// Realtime serves server-sent events for one authenticated group. The token
// and role travel in the query string because EventSource cannot set headers.
// The token is verified again on every heartbeat; a revoked or expired
// session, or an officer moved to another station, ends the stream with a
// session_expired event.
func (a *API) Realtime(w http.ResponseWriter, r *http.Request) {
	if a.deps.Realtime == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	q := r.URL.Query()
	token := q.Get("token")
	sub, err := a.deps.Realtime.Join(r.Context(), a.deps.Auth.Sessions(), q.Get("role"), token)
	if err != nil {
		if errors.Is(err, stream.ErrInvalidRole) {
			writeError(w, r, http.StatusBadRequest, "role must be citizen or officer")
			return
		}
		code, msg := classify(err)
		if code < http.StatusInternalServerError {
			code = http.StatusUnauthorized
		}
		writeError(w, r, code, msg)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	_, _ = fmt.Fprintf(w, ": joined %s\n\n", sub.Group)
	flusher.Flush()
	obs.Info("realtime_joined", map[string]any{
		"request_id": RequestIDFromContext(r.Context()),
		"group":      sub.Group,
		"principal":  sub.Principal.ID,
	})

	heartbeat := time.NewTicker(a.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if reason := a.streamRevoked(r, sub, token); reason != nil {
				obs.Info("realtime_closed", map[string]any{
					"request_id": RequestIDFromContext(r.Context()),
					"group":      sub.Group,
					"principal":  sub.Principal.ID,
					"reason":     reason,
				})
				_, _ = fmt.Fprint(w, "event: session_expired\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// streamRevoked re-verifies the subscription token. Transient store errors
// keep the stream open; only auth rejections and a station move close it.
func (a *API) streamRevoked(r *http.Request, sub stream.Subscription, token string) error {
	p, err := a.deps.Auth.Sessions().VerifyKind(r.Context(), token, sub.Principal.Kind)
	if err != nil {
		if code, _ := classify(err); code >= http.StatusInternalServerError {
			return nil
		}
		return err
	}
	if p.Kind == auth.KindOfficer && p.Station != sub.Principal.Station {
		return errStationMoved
	}
	return nil
}
