package handlers

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/workspace"
)

const wsWriteTimeout = 10 * time.Second

// LoginRequest is the body of POST /api/session/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// inbound is what the browser may send on the event socket.
type inbound struct {
	Type string `json:"type"`
}

// GetSession returns the tab's login state.
// GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.SessionView())
}

// Login authenticates the tab.
// POST /api/session/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		jsonError(w, "Please enter your email and password.", http.StatusUnprocessableEntity)
		return
	}
	view, err := ws.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err, apiclient.MsgLoginGeneric)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Logout clears the tab's session.
// POST /api/session/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := ws.Logout(r.Context()); err != nil {
		// The in-memory session is already cleared.
		ws.Logger().Warn("logout persist failed", "error", err)
	}
	writeJSON(w, http.StatusOK, ws.SessionView())
}

// Events upgrades to a websocket that streams auth_changed and navigate
// events for the tab. The current session state is sent first.
// GET /api/session/events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveEvents(conn, ws)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveEvents(conn *websocket.Conn, ws *workspace.Workspace) {
	events, cancel := ws.Subscribe()
	defer cancel()

	// The server's read timeout would otherwise end an idle stream.
	_ = conn.SetReadDeadline(time.Time{})

	view := ws.SessionView()
	if err := send(conn, workspace.Event{
		Type:     workspace.EventAuthChanged,
		LoggedIn: view.LoggedIn,
		Profile:  &view.Profile,
		At:       h.now().UTC(),
	}); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg inbound
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				_ = send(conn, map[string]string{"type": "pong"})
			}
		}
	}()

	ws.Logger().Debug("event stream opened")
	for {
		select {
		case <-closed:
			ws.Logger().Debug("event stream closed by client")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := send(conn, ev); err != nil {
				ws.Logger().Debug("event stream write failed", "error", err)
				return
			}
		}
	}
}

func send(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return websocket.JSON.Send(conn, v)
}
