package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/reserv/internal/appointments"
)

// ListAppointments returns one tab of the account's appointments. The
// backend list is chosen by role.
// GET /api/appointments?tab=&q=&from=&to=
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	list, err := ws.Appointments(r.Context())
	if err != nil {
		h.fail(w, err, appointments.MsgLoadFailed)
		return
	}
	q := r.URL.Query()
	view := list.View(appointments.ParseTab(q.Get("tab")), q.Get("q"), q.Get("from"), q.Get("to"), h.now())
	writeJSON(w, http.StatusOK, view)
}

// DeleteAppointment removes an appointment optimistically. The response is
// the list after the backend answered; a failed delete is rolled back and
// reported through the view's notice as well as the status.
// DELETE /api/appointments/{id}
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	list, err := ws.Appointments(r.Context())
	if err != nil {
		h.fail(w, err, appointments.MsgLoadFailed)
		return
	}
	q := r.URL.Query()
	tab := appointments.ParseTab(q.Get("tab"))
	if err := list.Delete(r.Context(), id); err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			h.fail(w, err, "")
			return
		}
		status, msg := statusFor(err, appointments.MsgDeleteFailed)
		view := list.View(tab, q.Get("q"), q.Get("from"), q.Get("to"), h.now())
		if view.Notice != nil {
			msg = view.Notice.Message
		}
		writeJSON(w, status, map[string]any{"error": msg, "appointments": view})
		return
	}
	writeJSON(w, http.StatusOK, list.View(tab, q.Get("q"), q.Get("from"), q.Get("to"), h.now()))
}
