package httpapi

import (
	"net/http"
	"strings"

	"spcs.org/internal/auth"
	"spcs.org/internal/complaint"
	"spcs.org/internal/geo"
)

type complaintResponse struct {
	Complaint *complaint.Complaint `json:"complaint"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *API) createComplaint(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req complaint.Fields
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.deps.Complaints.Create(r.Context(), p.ID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, complaintResponse{Complaint: c})
}

func (a *API) listComplaints(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	list, err := a.deps.Complaints.ListForOwner(r.Context(), p.ID, page)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) complaintStats(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	stats, err := a.deps.Complaints.OwnerStats(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (a *API) getComplaint(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	c, err := a.deps.Complaints.Get(r.Context(), r.PathValue("id"), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complaintResponse{Complaint: c})
}

func (a *API) updateComplaint(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var patch complaint.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.deps.Complaints.UpdateOwnerFields(r.Context(), r.PathValue("id"), p.ID, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, complaintResponse{Complaint: c})
}

// jurisdictionOf resolves the station an officer works on. Only an
// all-stations officer may narrow the view with ?station=.
func jurisdictionOf(r *http.Request, p auth.Principal) string {
	station := p.Station
	if station == "" {
		station = geo.AllStations
	}
	if station == geo.AllStations {
		if q := strings.TrimSpace(r.URL.Query().Get("station")); q != "" {
			return q
		}
	}
	return station
}

func actingOfficer(p auth.Principal) complaint.Officer {
	station := p.Station
	if station == "" {
		station = geo.AllStations
	}
	return complaint.Officer{ID: p.ID, Name: p.Username, Station: station}
}

func (a *API) listJurisdictionComplaints(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status := r.URL.Query().Get("status")
	list, err := a.deps.Complaints.ListForJurisdiction(r.Context(), jurisdictionOf(r, p), status, page)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) assignComplaint(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	c, err := a.deps.Complaints.Assign(r.Context(), r.PathValue("id"), actingOfficer(p))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "complaint.assigned", map[string]any{"complaint_id": c.ID, "officer_id": p.ID})
	writeJSON(w, http.StatusOK, complaintResponse{Complaint: c})
}

func (a *API) setComplaintStatus(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := a.deps.Complaints.SetStatus(r.Context(), r.PathValue("id"), actingOfficer(p), req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.audit(r.Context(), "complaint.status_updated", map[string]any{
		"complaint_id": c.ID,
		"officer_id":   p.ID,
		"status":       string(c.Status),
	})
	writeJSON(w, http.StatusOK, complaintResponse{Complaint: c})
}

func (a *API) jurisdictionStats(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	stats, err := a.deps.Complaints.JurisdictionStats(r.Context(), jurisdictionOf(r, p))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}
