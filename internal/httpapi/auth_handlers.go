package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"spcs.org/internal/auth"
)

type citizenSessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *auth.Citizen `json:"user"`
}

type officerSessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Officer   *auth.Officer `json:"officer"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Station  string `json:"station"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type sendCodeRequest struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Purpose string `json:"purpose"`
}

type verifyCodeRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

func (a *API) registerCitizen(w http.ResponseWriter, r *http.Request) {
	var req auth.CitizenRegistration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, sess, err := a.deps.Auth.RegisterCitizen(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.citizen.registered", map[string]any{"citizen_id": c.ID})
	writeJSON(w, http.StatusOK, citizenSessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: c})
}

func (a *API) loginCitizen(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, sess, err := a.deps.Auth.LoginCitizen(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, citizenSessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: c})
}

func (a *API) registerOfficer(w http.ResponseWriter, r *http.Request) {
	var req auth.OfficerRegistration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	o, sess, err := a.deps.Auth.RegisterOfficer(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.officer.registered", map[string]any{"officer_id": o.ID, "station": o.Station})
	writeJSON(w, http.StatusOK, officerSessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Officer: o})
}

func (a *API) loginOfficer(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec := auth.LoginRecord{IP: clientIP(r), UserAgent: r.UserAgent()}
	o, sess, err := a.deps.Auth.LoginOfficer(r.Context(), req.Email, req.Password, req.Station, rec)
	if err != nil {
		if errors.Is(err, auth.ErrStationMismatch) {
			a.audit(r.Context(), "auth.officer.station_mismatch", map[string]any{"email": req.Email, "station": req.Station})
		}
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.officer.login", map[string]any{"officer_id": o.ID, "ip": rec.IP})
	writeJSON(w, http.StatusOK, officerSessionResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, Officer: o})
}

// sendCode issues a verification code to the phone given in the request or,
// failing that, to the citizen's registered phone.
func (a *API) sendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "Email required")
		return
	}
	c, err := a.deps.Auth.CitizenByEmail(r.Context(), email)
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		phone = c.Phone
	}
	if !strings.HasPrefix(phone, "+") {
		writeError(w, r, http.StatusBadRequest, "No registered phone found; please add a valid +E.164 phone")
		return
	}
	ch, err := a.deps.OTP.Send(r.Context(), phone, email, req.Purpose)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (a *API) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, r, http.StatusBadRequest, "sessionId and code required")
		return
	}
	if err := a.deps.OTP.Verify(r.Context(), req.SessionID, req.Code); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) changeCitizenPassword(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.deps.Auth.ChangeCitizenPassword(r.Context(), p.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, r, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.citizen.password_changed", map[string]any{"citizen_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) changeOfficerPassword(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	err := a.deps.Auth.ChangeOfficerPassword(r.Context(), p.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, r, http.StatusUnauthorized, "Current password incorrect")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.officer.password_changed", map[string]any{"officer_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) logoutAll(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	version, err := a.deps.Auth.LogoutAll(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.officer.logout_all", map[string]any{"officer_id": p.ID, "session_version": version})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
