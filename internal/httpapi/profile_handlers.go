package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"spcs.org/internal/auth"
	"spcs.org/internal/geo"
)

type deleteProfileRequest struct {
	Password string `json:"password"`
}

type twoFactorRequest struct {
	Enable bool `json:"enable"`
}

type stationUpdateRequest struct {
	StationName string `json:"stationName"`
	Message     string `json:"message"`
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	c, err := a.deps.Auth.Citizen(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*auth.Citizen{"user": c})
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var patch auth.CitizenPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.deps.Auth.UpdateCitizenProfile(r.Context(), p.ID, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*auth.Citizen{"user": c})
}

// deleteProfile removes complaints and notifications after a password check,
// and the account last so a failed cleanup can be retried with the same
// credentials.
func (a *API) deleteProfile(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req deleteProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	err := a.deps.Auth.VerifyCitizenPassword(ctx, p.ID, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, r, http.StatusBadRequest, "Password is incorrect")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.deps.Complaints.DeleteForOwner(ctx, p.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.deps.Notifications.DeleteForUser(ctx, p.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.deps.Auth.DeleteCitizen(ctx, p.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(ctx, "auth.citizen.deleted", map[string]any{"citizen_id": p.ID})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) getOfficerProfile(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	o, err := a.deps.Auth.Officer(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) updateOfficerProfile(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var patch auth.OfficerPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	o, err := a.deps.Auth.UpdateOfficerProfile(r.Context(), p.ID, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) setTwoFactor(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req twoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	o, err := a.deps.Auth.SetTwoFactor(r.Context(), p.ID, req.Enable)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "twoFactorEnabled": o.TwoFactorEnabled})
}

func (a *API) listOfficers(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	officers, err := a.deps.Auth.OfficersAt(r.Context(), p.Station)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(officers))
}

func (a *API) listStations(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	stations, err := a.deps.Stations.Stations(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": nonNil(stations)})
}

// bulkUpsertStations accepts either a bare array or {"stations": [...]}.
func (a *API) bulkUpsertStations(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	inputs, err := stationInputs(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := a.deps.Stations.Upsert(r.Context(), inputs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "stations.bulk_upsert", map[string]any{
		"officer_id": p.ID,
		"upserts":    res.Upserts,
		"modified":   res.Modified,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "upserts": res.Upserts, "modified": res.Modified})
}

func (a *API) requestStationUpdate(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req stationUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := a.deps.Auth.RequestStationUpdate(r.Context(), p.ID, req.StationName, req.Message)
	if errors.Is(err, auth.ErrInvalidInput) {
		writeError(w, r, http.StatusBadRequest, "stationName required")
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "requestId": doc.ID})
}

func stationInputs(raw json.RawMessage) ([]geo.StationInput, error) {
	raw = bytes.TrimSpace(raw)
	var inputs []geo.StationInput
	if len(raw) > 0 && raw[0] == '[' {
		err := json.Unmarshal(raw, &inputs)
		return inputs, err
	}
	var body struct {
		Stations []geo.StationInput `json:"stations"`
	}
	err := json.Unmarshal(raw, &body)
	return body.Stations, err
}
