// Package handlers exposes the tab workspaces over HTTP. Every route
// resolves the caller's workspace from the tab cookie and answers JSON;
// failures are {"error": "..."} with a user-facing message.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/appointments"
	"github.com/wolfman30/reserv/internal/availability"
	"github.com/wolfman30/reserv/internal/booking"
	httpmiddleware "github.com/wolfman30/reserv/internal/http/middleware"
	"github.com/wolfman30/reserv/internal/provider"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/internal/workspace"
	"github.com/wolfman30/reserv/pkg/logging"
)

const maxBodyBytes = 1 << 20

var errNoTab = errors.New("handlers: request has no tab id")

// Workspaces resolves a tab id to its workspace. *workspace.Manager
// satisfies it.
type Workspaces interface {
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
}

// Handler serves the front-server API.
type Handler struct {
	workspaces Workspaces
	logger     *logging.Logger
	now        func() time.Time
}

type Option func(*Handler)

// WithClock overrides the clock used for appointment partitioning.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func New(workspaces Workspaces, logger *logging.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{workspaces: workspaces, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) workspace(r *http.Request) (*workspace.Workspace, error) {
	id, ok := httpmiddleware.TabIDFromContext(r.Context())
	if !ok {
		return nil, errNoTab
	}
	return h.workspaces.Get(r.Context(), id)
}

// Identity reports the login state of the request's tab, for role guards.
func (h *Handler) Identity(r *http.Request) (bool, session.Role, error) {
	ws, err := h.workspace(r)
	if err != nil {
		return false, session.RoleNone, err
	}
	return ws.Session().IsLoggedIn(), ws.Session().Role(), nil
}

// resolve returns the request's workspace, answering 503 itself when the
// session store is unavailable.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, err := h.workspace(r)
	if err != nil {
		h.logger.Error("workspace lookup failed", "error", err)
		jsonError(w, "Session unavailable. Please try again.", http.StatusServiceUnavailable)
		return nil, false
	}
	return ws, true
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("handlers: decode body: %w", err)
	}
	return nil
}

// statusFor maps domain errors to an HTTP status and message. fallback is
// used for unexpected failures.
func statusFor(err error, fallback string) (int, string) {
	var (
		verr   *booking.ValidationError
		ferr   *provider.FormError
		apiErr *apiclient.APIError
	)
	switch {
	case errors.Is(err, workspace.ErrNotLoggedIn):
		return http.StatusUnauthorized, httpmiddleware.MsgLoginRequired
	case errors.Is(err, workspace.ErrNoDrawer):
		return http.StatusNotFound, "No booking in progress."
	case errors.Is(err, workspace.ErrServiceNotFound):
		return http.StatusNotFound, "Service not found."
	case errors.Is(err, appointments.ErrNotFound):
		return http.StatusNotFound, "Appointment not found."
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, verr.Message
	case errors.As(err, &ferr):
		return http.StatusUnprocessableEntity, ferr.Message
	case errors.Is(err, availability.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Please pick a valid date."
	case errors.Is(err, availability.ErrUnknownSlot):
		return http.StatusUnprocessableEntity, "That time is no longer available."
	case errors.Is(err, booking.ErrInProgress), errors.Is(err, availability.ErrFrozen):
		return http.StatusConflict, booking.Message(booking.ErrInProgress)
	case errors.Is(err, booking.ErrDrawerClosed), errors.Is(err, availability.ErrClosed), errors.Is(err, workspace.ErrClosed):
		return http.StatusConflict, "This booking is no longer open."
	case apiclient.IsCanceled(err):
		return http.StatusServiceUnavailable, "Request canceled."
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status, msg
		}
		return http.StatusBadGateway, msg
	default:
		return http.StatusInternalServerError, fallback
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error, fallback string) {
	status, msg := statusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "status", status, "error", err)
	}
	jsonError(w, msg, status)
}
