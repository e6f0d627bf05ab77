package handlers

import (
	"net/http"

	"github.com/wolfman30/reserv/internal/provider"
)

// GetProviderService loads the provider's service as an editable form.
// GET /api/provider/service
func (h *Handler) GetProviderService(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	form, err := ws.Editor().Load(r.Context())
	if err != nil {
		h.fail(w, err, provider.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// UpdateProviderService validates and saves the form.
// PUT /api/provider/service
func (h *Handler) UpdateProviderService(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var form provider.Form
	if err := decode(r, &form); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	saved, err := ws.Editor().Save(r.Context(), form)
	if err != nil {
		h.fail(w, err, provider.MsgSaveFailed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": provider.MsgSaved, "service": saved})
}

// GetProfile returns the logged-in user's profile.
// GET /api/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	profile, err := ws.Profile(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to load profile.")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
