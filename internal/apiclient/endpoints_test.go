package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantTok string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: MsgInvalidCredentials},
		{name: "server message", status: http.StatusBadRequest, body: `{"message":"Account locked"}`, want: "Account locked"},
		{name: "server without message", status: http.StatusInternalServerError, body: `{}`, want: MsgLoginGeneric},
		{name: "no token", status: http.StatusOK, body: `{"email":"a@b.c","role":"CLIENT"}`, want: MsgLoginNoToken},
		{name: "token", status: http.StatusOK, body: `{"token":"jwt-1","email":"a@b.c","role":"CLIENT"}`, wantTok: "jwt-1"},
		{name: "access token", status: http.StatusOK, body: `{"accessToken":"jwt-2","role":"PROVIDER"}`, wantTok: "jwt-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/login", r.URL.Path)
				var req LoginRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "a@b.c", req.Email)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, nil)
			res, err := c.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "pw"})
			if tt.wantTok != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantTok, res.Token)
				return
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestLoginNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(url, nil)
	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b.c"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, MsgNetwork, apiErr.Message)
	assert.Equal(t, 0, apiErr.Status)
}

func TestAvailableSlotsRequest(t *testing.T) {
	now := time.UnixMilli(1767225600000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments/available-slots", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("serviceId"))
		assert.Equal(t, "2026-03-02", r.URL.Query().Get("date"))
		assert.Equal(t, "1767225600000", r.URL.Query().Get("t"))
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"serviceId":7,"providerId":3,"date":"2026-03-02","slots":["09:00","10:00"]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, &fakeSession{token: "tok"}, WithClock(func() time.Time { return now }))
	slots, err := c.AvailableSlots(context.Background(), "7", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00"}, slots)
}

func TestAvailableSlotsShapes(t *testing.T) {
	tests := map[string][]string{
		`["08:00"]`:           {"08:00"},
		`{"slots":null}`:      {},
		``:                    {},
		`{"slots":["11:30"]}`: {"11:30"},
	}
	for body, want := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := newTestClient(srv.URL, nil)
		got, err := c.AvailableSlots(context.Background(), "1", "2026-01-01")
		srv.Close()
		require.NoError(t, err, body)
		assert.Equal(t, want, got, body)
	}
}

func TestAvailableSlotsErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	_, err := c.AvailableSlots(context.Background(), "1", "2026-01-01")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, MsgSlotsUnavailable, apiErr.Message)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
}

func TestCreateAppointment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, float64(7), raw["serviceId"])
		assert.Equal(t, float64(3), raw["providerId"])
		assert.Equal(t, "2026-03-02T10:00:00", raw["startAt"])
		_, hasClient := raw["clientId"]
		assert.False(t, hasClient)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":99,"serviceId":7,"providerId":3,"startAt":"2026-03-02T10:00:00","status":"BOOKED"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	resp, err := c.CreateAppointment(context.Background(), AppointmentRequest{ServiceID: "7", ProviderID: "3", StartAt: "2026-03-02T10:00:00"})
	require.NoError(t, err)
	assert.Equal(t, ID("99"), resp.ID)
	assert.Equal(t, "BOOKED", resp.Status)
}

func TestCreateAppointmentFailureFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	_, err := c.CreateAppointment(context.Background(), AppointmentRequest{ServiceID: "1", ProviderID: "2", StartAt: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Booking failed (502).", apiErr.Message)
}

func TestProviderServiceShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  ID
		wantErr error
	}{
		{name: "object", body: `{"id":5,"name":"Yoga","price":20,"durationMinutes":60}`, wantID: "5"},
		{name: "array", body: `[{"id":6,"name":"Pilates"},{"id":7}]`, wantID: "6"},
		{name: "empty array", body: `[]`, wantErr: ErrNoProviderService},
		{name: "null", body: `null`, wantErr: ErrNoProviderService},
		{name: "missing id", body: `{"name":"Yoga"}`, wantErr: ErrServiceIDMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/provider/services", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, nil)
			svc, err := c.ProviderService(context.Background())
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, svc.ID)
			assert.NotNil(t, svc.WorkingDays)
		})
	}
}

func TestDeleteAndUpdatePaths(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	ctx := context.Background()
	require.NoError(t, c.DeleteAppointment(ctx, "42"))
	require.NoError(t, c.UpdateProviderService(ctx, "5", ProviderService{ID: "5", Name: "Yoga"}))
	assert.Equal(t, []string{"DELETE /api/appointment/42", "PUT /api/provider/service/5"}, seen)
}

func TestRegisterConflictMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"status":409,"message":"Email already exists"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	err := c.RegisterClient(context.Background(), RegisterRequest{Email: "a@b.c"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Email already exists", apiErr.Message)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestIDDecoding(t *testing.T) {
	var payload struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12,"b":"abc","c":null}`), &payload))
	assert.Equal(t, ID("12"), payload.A)
	assert.Equal(t, ID("abc"), payload.B)
	assert.Equal(t, ID(""), payload.C)

	out, err := json.Marshal(struct {
		N ID `json:"n"`
		S ID `json:"s"`
	}{N: "12", S: "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":12,"s":"abc"}`, string(out))
}
