package handlers

import (
	"net/http"
	"strconv"

	"github.com/wolfman30/reserv/internal/catalog"
)

// GetCatalog returns the filtered service catalog.
// GET /api/catalog?query=&category=&provider=&refresh=
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	refresh, _ := strconv.ParseBool(q.Get("refresh"))
	view, err := ws.Catalog(r.Context(), catalog.Criteria{
		Query:    q.Get("query"),
		Category: q.Get("category"),
		Provider: q.Get("provider"),
	}, refresh)
	if err != nil {
		h.fail(w, err, catalog.MsgLoadFailed)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
