package handlers

import (
	"net/http"
	"strings"

	"github.com/wolfman30/reserv/internal/booking"
)

// BookingFailure is the body of a rejected booking action: the error plus
// the drawer as it stands.
type BookingFailure struct {
	Error   string                 `json:"error"`
	Booking booking.DrawerSnapshot `json:"booking"`
}

type openBookingRequest struct {
	ServiceID string `json:"serviceId"`
}

type dateRequest struct {
	Date string `json:"date"`
	// Wait blocks until the slot request settles.
	Wait bool `json:"wait"`
}

type slotRequest struct {
	Slot string `json:"slot"`
}

// OpenBooking opens the drawer for a service, replacing any open drawer.
// POST /api/booking
func (h *Handler) OpenBooking(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req openBookingRequest
	if err := decode(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	serviceID := strings.TrimSpace(req.ServiceID)
	if serviceID == "" {
		jsonError(w, booking.MsgMissingService, http.StatusUnprocessableEntity)
		return
	}
	d, err := ws.OpenDrawer(r.Context(), serviceID)
	if err != nil {
		h.fail(w, err, "Could not open booking.")
		return
	}
	writeJSON(w, http.StatusCreated, d.Snapshot())
}

// GetBooking returns the open drawer.
// GET /api/booking
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	d, err := ws.Drawer()
	if err != nil {
		h.fail(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, d.Snapshot())
}

// SelectDate loads the slots of a date.
// POST /api/booking/date
func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	d, err := ws.Drawer()
	if err != nil {
		h.fail(w, err, "")
		return
	}
	var req dateRequest
	if err := decode(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	snap, err := d.SelectDate(r.Context(), strings.TrimSpace(req.Date))
	if err != nil {
		h.failBooking(w, err, snap)
		return
	}
	if req.Wait {
		if snap, err = d.Wait(r.Context()); err != nil {
			h.failBooking(w, err, snap)
			return
		}
	}
	writeJSON(w, http.StatusOK, snap)
}

// SelectSlot picks one of the loaded slots; an empty slot clears it.
// POST /api/booking/slot
func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	d, err := ws.Drawer()
	if err != nil {
		h.fail(w, err, "")
		return
	}
	var req slotRequest
	if err := decode(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	snap, err := d.SelectSlot(strings.TrimSpace(req.Slot))
	if err != nil {
		h.failBooking(w, err, snap)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ConfirmBooking submits the selected slot. On success the navigate event
// follows on the event stream after the confirmation delay.
// POST /api/booking/confirm
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	d, err := ws.Drawer()
	if err != nil {
		h.fail(w, err, "")
		return
	}
	snap, err := d.Confirm(r.Context())
	if err != nil {
		h.failBooking(w, err, snap)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// NavigateNow skips the rest of the confirmation delay.
// POST /api/booking/navigate
func (h *Handler) NavigateNow(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	d, err := ws.Drawer()
	if err != nil {
		h.fail(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"navigated": d.NavigateNow(),
		"target":    booking.AppointmentsPath,
	})
}

// CloseBooking closes the drawer and cancels its pending work.
// DELETE /api/booking
func (h *Handler) CloseBooking(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ws.CloseDrawer()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) failBooking(w http.ResponseWriter, err error, snap booking.DrawerSnapshot) {
	status, msg := statusFor(err, booking.MsgBookingFailed)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("booking request failed", "status", status, "error", err)
	}
	if snap.Error != "" {
		msg = snap.Error
	}
	writeJSON(w, status, BookingFailure{Error: msg, Booking: snap})
}
