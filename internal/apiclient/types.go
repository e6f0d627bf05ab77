package apiclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ID is a backend identifier. The API sends numeric ids; older payloads
// used strings. Both decode into the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON emits numeric ids as JSON numbers and everything else as a
// string; an empty id is null.
func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if s == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id ID) String() string { return string(id) }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string
	Email string
	Role  string
}

// RegisterRequest is the account registration payload shared by the
// client, provider and generic registration endpoints.
type RegisterRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Password    string `json:"password"`
	Role        string `json:"role,omitempty"`
}

// WorkingDay is one weekly availability window of a service.
type WorkingDay struct {
	DayOfWeek string `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// ServiceRegistration creates a service linked to a provider by email.
type ServiceRegistration struct {
	ServiceType     string       `json:"serviceType"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Price           float64      `json:"price"`
	DurationMinutes int          `json:"durationMinutes"`
	ProviderEmail   string       `json:"providerEmail"`
	WorkingDays     []WorkingDay `json:"workingDays"`
}

// ProviderService is the provider's own service as edited on the manage
// page.
type ProviderService struct {
	ID              ID           `json:"id"`
	ServiceType     string       `json:"serviceType"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Price           float64      `json:"price"`
	DurationMinutes int          `json:"durationMinutes"`
	ProviderEmail   string       `json:"providerEmail,omitempty"`
	WorkingDays     []WorkingDay `json:"workingDays"`
}

// ProviderRef is the nested provider object of a service DTO and the
// element type of /api/all-providers.
type ProviderRef struct {
	ID        ID     `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ServiceDTO is one element of /api/service/all. Field names vary between
// backend versions; catalog.FromDTO resolves them.
type ServiceDTO struct {
	ID                ID           `json:"id"`
	ServiceID         ID           `json:"serviceId"`
	Name              string       `json:"name"`
	Description       string       `json:"description"`
	Price             float64      `json:"price"`
	Duration          int          `json:"duration"`
	ServiceType       string       `json:"serviceType"`
	ProviderID        ID           `json:"providerId"`
	TrainerID         ID           `json:"trainerId"`
	ProviderFirstName string       `json:"providerFirstName"`
	ProviderLastName  string       `json:"providerLastName"`
	Provider          *ProviderRef `json:"provider"`
}

// AppointmentDTO is one element of the appointment list endpoints.
// Date-times are zone-less local date-times.
type AppointmentDTO struct {
	ID                ID      `json:"id"`
	Name              string  `json:"name"`
	UserNames         string  `json:"userNames"`
	DurationInMinutes int     `json:"durationInMinutes"`
	Price             float64 `json:"price"`
	ServiceType       string  `json:"serviceType"`
	StartDateTime     string  `json:"startDateTime"`
	EndDateTime       string  `json:"endDateTime"`
	Status            string  `json:"status,omitempty"`
}

// AvailabilityResponse is the slots endpoint payload.
type AvailabilityResponse struct {
	ServiceID       ID       `json:"serviceId"`
	ProviderID      ID       `json:"providerId"`
	Date            string   `json:"date"`
	Timezone        string   `json:"timezone"`
	DurationMinutes int      `json:"durationMinutes"`
	Slots           []string `json:"slots"`
}

// AppointmentRequest books one slot. StartAt is "YYYY-MM-DDTHH:mm:00".
type AppointmentRequest struct {
	ServiceID  ID     `json:"serviceId"`
	ProviderID ID     `json:"providerId"`
	StartAt    string `json:"startAt"`
	ClientID   ID     `json:"clientId,omitempty"`
}

// AppointmentResponse is the created appointment.
type AppointmentResponse struct {
	ID              ID     `json:"id"`
	ServiceID       ID     `json:"serviceId"`
	ProviderID      ID     `json:"providerId"`
	ClientID        ID     `json:"clientId"`
	StartAt         string `json:"startAt"`
	DurationMinutes int    `json:"durationMinutes"`
	Status          string `json:"status"`
}

// UserProfile is the /api/user/profile payload.
type UserProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}
