// Package apitest provides an in-memory scheduling API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/reserv/internal/apiclient"
)

// Account is a login the backend accepts.
type Account struct {
	Password string
	Token    string
	Role     string
	// OmitRole leaves the role out of the login response.
	OmitRole bool
}

// Backend is a fake scheduling API. Fields may be changed between requests
// while holding Lock.
type Backend struct {
	*httptest.Server

	sync.Mutex
	Accounts      map[string]Account
	ServiceTypes  []string
	Services      []apiclient.ServiceDTO
	Providers     []apiclient.ProviderRef
	Slots         []string
	ClientAppts   []apiclient.AppointmentDTO
	ProviderAppts []apiclient.AppointmentDTO
	Service       *apiclient.ProviderService
	Profile       apiclient.UserProfile
	// Unauthorized makes every authenticated endpoint answer 401.
	Unauthorized bool
	// ListsDown makes the appointment list endpoints answer 500.
	ListsDown bool

	Booked    []apiclient.AppointmentRequest
	Deleted   []string
	Updated   []apiclient.ProviderService
	Registers []string
	Requests  []string
}

// NewBackend starts a backend with one client and one provider account
// and a single bookable service.
func NewBackend() *Backend {
	b := &Backend{
		Accounts: map[string]Account{
			"client@example.com":   {Password: "secret", Token: "client-token", Role: "CLIENT"},
			"provider@example.com": {Password: "secret", Token: "provider-token", Role: "PROVIDER"},
		},
		ServiceTypes: []string{"PERSONAL_TRAINING", "YOGA"},
		Services: []apiclient.ServiceDTO{
			{ServiceID: "1", Name: "Strength Training", Description: "Barbell basics", Price: 40, Duration: 60, ServiceType: "PERSONAL_TRAINING", ProviderID: "9", ProviderFirstName: "Ann", ProviderLastName: "Lee"},
			{ServiceID: "2", Name: "Morning Flow", Description: "Gentle yoga", Price: 25, Duration: 45, ServiceType: "YOGA", ProviderFirstName: "Bo", ProviderLastName: "Kim"},
		},
		Providers: []apiclient.ProviderRef{{ID: "9", FirstName: "Ann", LastName: "Lee"}},
		Slots:     []string{"09:00", "10:00", "11:00"},
		Profile:   apiclient.UserProfile{FirstName: "Cat", LastName: "Doe", Email: "client@example.com"},
	}
	b.Server = httptest.NewServer(b.routes())
	return b
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.Lock()
			b.Requests = append(b.Requests, req.Method+" "+req.URL.Path)
			b.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/api/login", b.login)
	r.Post("/api/register/client", b.register)
	r.Post("/api/register/provider", b.register)
	r.Post("/api/auth/register", b.register)
	r.Group(func(r chi.Router) {
		r.Use(b.auth)
		r.Post("/api/register/service", b.registerService)
		r.Get("/api/service-type", b.list(func() any { return b.ServiceTypes }))
		r.Get("/api/service/all", b.list(func() any { return b.Services }))
		r.Get("/api/all-providers", b.list(func() any { return b.Providers }))
		r.Get("/api/appointments/available-slots", b.list(func() any { return map[string]any{"slots": b.Slots} }))
		r.Post("/api/appointment", b.book)
		r.Get("/api/appointments/all", b.appointments(func() any { return b.ClientAppts }))
		r.Get("/api/provider/appointments/all", b.appointments(func() any { return b.ProviderAppts }))
		r.Delete("/api/appointment/{id}", b.deleteAppointment)
		r.Get("/api/provider/services", b.list(func() any { return b.Service }))
		r.Put("/api/provider/service/{id}", b.updateService)
		r.Get("/api/user/profile", b.list(func() any { return b.Profile }))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.Lock()
		ok := !b.Unauthorized && token != ""
		if ok {
			ok = false
			for _, a := range b.Accounts {
				if a.Token == token {
					ok = true
					break
				}
			}
		}
		b.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req apiclient.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	b.Lock()
	a, ok := b.Accounts[req.Email]
	b.Unlock()
	if !ok || a.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	resp := map[string]string{"token": a.Token, "email": req.Email}
	if !a.OmitRole {
		resp["role"] = a.Role
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req apiclient.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	b.Lock()
	defer b.Unlock()
	if _, exists := b.Accounts[req.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Email already exists"})
		return
	}
	b.Registers = append(b.Registers, r.URL.Path+" "+req.Email)
	writeJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

func (b *Backend) registerService(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ServiceRegistration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	b.Lock()
	b.Registers = append(b.Registers, r.URL.Path+" "+req.Name)
	b.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (b *Backend) list(get func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.Lock()
		v := get()
		b.Unlock()
		writeJSON(w, http.StatusOK, v)
	}
}

func (b *Backend) appointments(get func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.Lock()
		down, v := b.ListsDown, get()
		b.Unlock()
		if down {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "backend down"})
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (b *Backend) book(w http.ResponseWriter, r *http.Request) {
	var req apiclient.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	b.Lock()
	b.Booked = append(b.Booked, req)
	b.Unlock()
	writeJSON(w, http.StatusCreated, apiclient.AppointmentResponse{
		ID:         "100",
		ServiceID:  req.ServiceID,
		ProviderID: req.ProviderID,
		StartAt:    req.StartAt,
		Status:     "BOOKED",
	})
}

func (b *Backend) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b.Lock()
	b.Deleted = append(b.Deleted, id)
	b.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) updateService(w http.ResponseWriter, r *http.Request) {
	var svc apiclient.ProviderService
	if err := json.NewDecoder(r.Body).Decode(&svc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request"})
		return
	}
	svc.ID = apiclient.ID(chi.URLParam(r, "id"))
	b.Lock()
	b.Updated = append(b.Updated, svc)
	b.Service = &svc
	b.Unlock()
	writeJSON(w, http.StatusOK, svc)
}

// Count returns how many requests matched "METHOD /path".
func (b *Backend) Count(request string) int {
	b.Lock()
	defer b.Unlock()
	n := 0
	for _, r := range b.Requests {
		if r == request {
			n++
		}
	}
	return n
}

// Bookings returns a copy of the booking requests received so far.
func (b *Backend) Bookings() []apiclient.AppointmentRequest {
	b.Lock()
	defer b.Unlock()
	return append([]apiclient.AppointmentRequest(nil), b.Booked...)
}

// Deletions returns a copy of the deleted appointment ids.
func (b *Backend) Deletions() []string {
	b.Lock()
	defer b.Unlock()
	return append([]string(nil), b.Deleted...)
}

// Updates returns a copy of the provider service updates.
func (b *Backend) Updates() []apiclient.ProviderService {
	b.Lock()
	defer b.Unlock()
	return append([]apiclient.ProviderService(nil), b.Updated...)
}

// Registrations returns a copy of the "path email-or-name" registrations.
func (b *Backend) Registrations() []string {
	b.Lock()
	defer b.Unlock()
	return append([]string(nil), b.Registers...)
}
