package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// User-facing messages shared with the front end.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgLoginGeneric       = "Something went wrong. Please try again."
	MsgLoginNoToken       = "Login succeeded but no token was returned."
	MsgNetwork            = "Network error. Please try again later."
	MsgSlotsUnavailable   = "Could not load availability."
	MsgNoProviderService  = "No service found for this provider."
	MsgServiceIDMissing   = "Service id is missing in the GET response."
)

// ErrNoProviderService is returned when the provider has no service yet.
var ErrNoProviderService = errors.New(MsgNoProviderService)

// ErrServiceIDMissing is returned when the provider service has no id.
var ErrServiceIDMissing = errors.New(MsgServiceIDMissing)

func (c *Client) send(ctx context.Context, endpoint, method, path string, in any, header http.Header) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("apiclient: marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	return c.do(ctx, endpoint, method, path, body, header)
}

// call sends in as JSON and decodes a 2xx body into out. Non-2xx responses
// become *APIError built from the body or fallback.
func (c *Client) call(ctx context.Context, endpoint, method, path string, in, out any, fallback string) error {
	resp, err := c.send(ctx, endpoint, method, path, in, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewAPIError(resp, fallback)
	}
	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apiclient: read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s: %w", endpoint, err)
	}
	return nil
}

// Login exchanges credentials for a token. Every failure is an *APIError
// whose Message is ready to show, except context cancellation.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	resp, err := c.send(ctx, "POST /api/login", http.MethodPost, "/api/login", req, nil)
	if err != nil {
		if IsCanceled(err) {
			return nil, err
		}
		return nil, &APIError{Message: MsgNetwork}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &APIError{Status: resp.StatusCode, Message: MsgInvalidCredentials}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewAPIError(resp, MsgLoginGeneric)
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, &APIError{Status: resp.StatusCode, Message: MsgLoginNoToken}
	}
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		token = strings.TrimSpace(payload.AccessToken)
	}
	if token == "" {
		return nil, &APIError{Status: resp.StatusCode, Message: MsgLoginNoToken}
	}
	return &LoginResult{Token: token, Email: payload.Email, Role: payload.Role}, nil
}

func (c *Client) RegisterClient(ctx context.Context, req RegisterRequest) error {
	return c.call(ctx, "POST /api/register/client", http.MethodPost, "/api/register/client", req, nil, "Registration failed (%d)")
}

func (c *Client) RegisterProvider(ctx context.Context, req RegisterRequest) error {
	return c.call(ctx, "POST /api/register/provider", http.MethodPost, "/api/register/provider", req, nil, "Registration failed (%d)")
}

// Register uses the generic registration endpoint; req.Role selects the
// account type.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.call(ctx, "POST /api/auth/register", http.MethodPost, "/api/auth/register", req, nil, "Registration failed (%d)")
}

func (c *Client) RegisterService(ctx context.Context, req ServiceRegistration) error {
	return c.call(ctx, "POST /api/register/service", http.MethodPost, "/api/register/service", req, nil, "Service registration failed (%d)")
}

// ServiceTypes lists the service category enum values.
func (c *Client) ServiceTypes(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.call(ctx, "GET /api/service-type", http.MethodGet, "/api/service-type", nil, &out, "Failed to load service types (%d)"); err != nil {
		return nil, fmt.Errorf("service types: %w", err)
	}
	return out, nil
}

func (c *Client) Services(ctx context.Context) ([]ServiceDTO, error) {
	var out []ServiceDTO
	if err := c.call(ctx, "GET /api/service/all", http.MethodGet, "/api/service/all", nil, &out, "Failed to load services (%d)"); err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}
	return out, nil
}

func (c *Client) Providers(ctx context.Context) ([]ProviderRef, error) {
	var out []ProviderRef
	if err := c.call(ctx, "GET /api/all-providers", http.MethodGet, "/api/all-providers", nil, &out, "Failed to load providers (%d)"); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	return out, nil
}

// AvailableSlots fetches the bookable start times of a service on date
// (YYYY-MM-DD). Responses are never cached.
func (c *Client) AvailableSlots(ctx context.Context, serviceID, date string) ([]string, error) {
	q := url.Values{}
	q.Set("serviceId", serviceID)
	q.Set("date", date)
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	path := "/api/appointments/available-slots?" + q.Encode()

	header := http.Header{}
	header.Set("Cache-Control", "no-store")
	resp, err := c.send(ctx, "GET /api/appointments/available-slots", http.MethodGet, path, nil, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewAPIError(resp, MsgSlotsUnavailable)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read slots: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []string{}, nil
	}
	if raw[0] == '[' {
		var slots []string
		if err := json.Unmarshal(raw, &slots); err != nil {
			return nil, fmt.Errorf("apiclient: decode slots: %w", err)
		}
		return slots, nil
	}
	var payload AvailabilityResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("apiclient: decode slots: %w", err)
	}
	if payload.Slots == nil {
		return []string{}, nil
	}
	return payload.Slots, nil
}

// CreateAppointment books a slot. Non-2xx responses surface the server's
// message, or "Booking failed (<status>)."
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*AppointmentResponse, error) {
	var out AppointmentResponse
	if err := c.call(ctx, "POST /api/appointment", http.MethodPost, "/api/appointment", req, &out, "Booking failed (%d)."); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClientAppointments lists the logged-in client's appointments.
func (c *Client) ClientAppointments(ctx context.Context) ([]AppointmentDTO, error) {
	var out []AppointmentDTO
	if err := c.call(ctx, "GET /api/appointments/all", http.MethodGet, "/api/appointments/all", nil, &out, "Failed to load appointments (%d)"); err != nil {
		return nil, fmt.Errorf("client appointments: %w", err)
	}
	return out, nil
}

// ProviderAppointments lists appointments booked against the logged-in
// provider's services.
func (c *Client) ProviderAppointments(ctx context.Context) ([]AppointmentDTO, error) {
	var out []AppointmentDTO
	if err := c.call(ctx, "GET /api/provider/appointments/all", http.MethodGet, "/api/provider/appointments/all", nil, &out, "Failed to load appointments (%d)"); err != nil {
		return nil, fmt.Errorf("provider appointments: %w", err)
	}
	return out, nil
}

func (c *Client) DeleteAppointment(ctx context.Context, id string) error {
	path := "/api/appointment/" + url.PathEscape(id)
	return c.call(ctx, "DELETE /api/appointment/{id}", http.MethodDelete, path, nil, nil, "Delete failed (%d)")
}

// ProviderService loads the logged-in provider's service. The endpoint may
// answer with an object or a list; the first element of a list is used.
func (c *Client) ProviderService(ctx context.Context) (*ProviderService, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "GET /api/provider/services", http.MethodGet, "/api/provider/services", nil, &raw, "Failed to load service (%d)"); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoProviderService
	}

	var svc ProviderService
	if raw[0] == '[' {
		var list []ProviderService
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("apiclient: decode provider services: %w", err)
		}
		if len(list) == 0 {
			return nil, ErrNoProviderService
		}
		svc = list[0]
	} else if err := json.Unmarshal(raw, &svc); err != nil {
		return nil, fmt.Errorf("apiclient: decode provider service: %w", err)
	}
	if svc.ID == "" {
		return nil, ErrServiceIDMissing
	}
	if svc.WorkingDays == nil {
		svc.WorkingDays = []WorkingDay{}
	}
	return &svc, nil
}

func (c *Client) UpdateProviderService(ctx context.Context, id string, svc ProviderService) error {
	path := "/api/provider/service/" + url.PathEscape(id)
	return c.call(ctx, "PUT /api/provider/service/{id}", http.MethodPut, path, svc, nil, "Update failed (%d)")
}

func (c *Client) Profile(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := c.call(ctx, "GET /api/user/profile", http.MethodGet, "/api/user/profile", nil, &out, "Failed to load profile (%d)"); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return &out, nil
}
