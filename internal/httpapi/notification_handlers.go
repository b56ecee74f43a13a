package httpapi

import (
	"net/http"

	"spcs.org/internal/auth"
	"spcs.org/internal/notify"
)

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := a.deps.Notifications.ListForUser(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(items)})
}

func (a *API) readNotification(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	n, err := a.deps.Notifications.MarkRead(r.Context(), p.ID, r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*notify.Notification{"notification": n})
}

func (a *API) readAllNotifications(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := a.deps.Notifications.MarkAllRead(r.Context(), p.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(items)})
}

func (a *API) listStationNotifications(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := a.deps.Notifications.ListForStation(r.Context(), jurisdictionOf(r, p))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(items)})
}

func (a *API) readStationNotification(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	n, err := a.deps.Notifications.MarkStationRead(r.Context(), jurisdictionOf(r, p), r.PathValue("id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*notify.StationNotification{"notification": n})
}

func (a *API) readAllStationNotifications(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	items, err := a.deps.Notifications.MarkAllStationRead(r.Context(), jurisdictionOf(r, p))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": nonNil(items)})
}
