package handlers

import (
	"net/http"
	"strings"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/provider"
	"github.com/wolfman30/reserv/internal/session"
)

const msgRequiredFields = "Please fill in all required fields."

// RegisterClient creates a client account.
// POST /api/register/client
func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, session.RoleClient)
}

// RegisterProvider creates a provider account. The front end continues
// with service registration using the same email.
// POST /api/register/provider
func (h *Handler) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, session.RoleProvider)
}

// RegisterAccount creates an account through the generic endpoint; the
// body's role picks the account type.
// POST /api/register
func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, session.RoleNone)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, role session.Role) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var req apiclient.RegisterRequest
	if err := decode(r, &req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	generic := role == session.RoleNone
	if generic {
		role = session.ParseRole(req.Role)
		if role == session.RoleNone {
			jsonError(w, "Please choose an account type.", http.StatusUnprocessableEntity)
			return
		}
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		jsonError(w, msgRequiredFields, http.StatusUnprocessableEntity)
		return
	}
	req.Role = ""

	var err error
	switch {
	case generic:
		req.Role = string(role)
		err = ws.API().Register(r.Context(), req)
	case role == session.RoleProvider:
		err = ws.API().RegisterProvider(r.Context(), req)
	default:
		err = ws.API().RegisterClient(r.Context(), req)
	}
	if err != nil {
		h.fail(w, err, "Registration failed.")
		return
	}
	ws.Logger().Info("account registered", "role", string(role))
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Registered!",
		"email":   req.Email,
		"role":    string(role),
	})
}

// RegisterService registers the first service of a provider. The provider
// email falls back to the logged-in provider's.
// POST /api/register/service
func (h *Handler) RegisterService(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var form provider.Form
	if err := decode(r, &form); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(form.ProviderEmail) == "" && ws.Session().Role() == session.RoleProvider {
		form.ProviderEmail = ws.Session().Profile().Email
	}
	if err := ws.Editor().Register(r.Context(), form); err != nil {
		h.fail(w, err, provider.MsgRegisterErr)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": provider.MsgRegistered})
}
