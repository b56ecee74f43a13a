package httpapi

import (
	"errors"
	"net/http"

	"spcs.org/internal/auth"
	"spcs.org/internal/complaint"
	"spcs.org/internal/geo"
	"spcs.org/internal/notify"
	"spcs.org/internal/obs"
	"spcs.org/internal/otp"
)

// classify maps domain errors onto a status code and a client-safe message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, complaint.ErrInvalidInput),
		errors.Is(err, otp.ErrInvalidInput):
		return http.StatusBadRequest, "missing or invalid fields"
	case errors.Is(err, complaint.ErrInvalidStatus):
		return http.StatusBadRequest, "Invalid status"
	case errors.Is(err, geo.ErrNoStations):
		return http.StatusBadRequest, "No stations provided"
	case errors.Is(err, geo.ErrNoValidStation):
		return http.StatusBadRequest, "No valid stations to upsert"
	case errors.Is(err, otp.ErrInvalidSession):
		return http.StatusBadRequest, "Invalid or expired session"
	case errors.Is(err, otp.ErrExpired):
		return http.StatusBadRequest, "Code expired"
	case errors.Is(err, otp.ErrCodeMismatch):
		return http.StatusBadRequest, "Invalid code"

	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrStationMismatch):
		return http.StatusUnauthorized, "Station mismatch"
	case errors.Is(err, auth.ErrWrongKind):
		return http.StatusForbidden, "access denied for this account type"
	case errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized, "Session expired. Please login again."
	case errors.Is(err, auth.ErrExpired):
		return http.StatusUnauthorized, "token expired"
	case auth.IsTokenError(err):
		return http.StatusUnauthorized, "invalid token"

	case errors.Is(err, auth.ErrNotFound),
		errors.Is(err, complaint.ErrNotFound),
		errors.Is(err, notify.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, otp.ErrUnavailable):
		return http.StatusServiceUnavailable, "verification service unavailable"
	case errors.Is(err, otp.ErrSendFailed):
		return http.StatusInternalServerError, "Failed to send code"
	}
	return http.StatusInternalServerError, "internal error"
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := classify(err)
	if code >= http.StatusInternalServerError {
		obs.Error("request_failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"error":      err,
		})
	}
	writeError(w, r, code, msg)
}
