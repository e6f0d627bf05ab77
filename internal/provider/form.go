// Package provider holds the provider-side service form: loading it from
// the API, validating edits and building the update and registration
// payloads.
package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/availability"
)

const (
	MsgMissingID          = "Missing service id for update."
	MsgChooseType         = "Please choose a service type."
	MsgEnterName          = "Please enter a name."
	MsgEnterServiceName   = "Please enter a service name."
	MsgEnterDescription   = "Please enter a description."
	MsgPricePositive      = "Price must be a positive number."
	MsgDurationPositive   = "Duration must be a positive integer."
	MsgDurationMinutes    = "Duration must be a positive integer (minutes)."
	MsgMissingEmail       = "Missing provider email. Please start from account registration."
	MsgInvalidWorkingDays = "Working days need a weekday and a start time before the end time."
)

var weekdays = map[string]bool{
	"MONDAY": true, "TUESDAY": true, "WEDNESDAY": true, "THURSDAY": true,
	"FRIDAY": true, "SATURDAY": true, "SUNDAY": true,
}

// FormError is a field validation failure.
type FormError struct {
	Message string
}

func (e *FormError) Error() string { return e.Message }

// Text is a form value that decodes from a JSON string or number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("provider: expected string or number: %w", err)
	}
	*t = Text(n.String())
	return nil
}

// Form is the editable service as entered by the provider.
type Form struct {
	ID              string                 `json:"id,omitempty"`
	ServiceType     string                 `json:"serviceType"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	Price           Text                   `json:"price"`
	DurationMinutes Text                   `json:"durationMinutes"`
	ProviderEmail   string                 `json:"providerEmail,omitempty"`
	WorkingDays     []apiclient.WorkingDay `json:"workingDays"`
}

// FormFromService fills the form from the loaded service.
func FormFromService(svc apiclient.ProviderService) Form {
	f := Form{
		ID:          svc.ID.String(),
		ServiceType: svc.ServiceType,
		Name:        svc.Name,
		Description: svc.Description,
		WorkingDays: svc.WorkingDays,
	}
	if svc.Price != 0 {
		f.Price = Text(strconv.FormatFloat(svc.Price, 'f', -1, 64))
	}
	if svc.DurationMinutes != 0 {
		f.DurationMinutes = Text(strconv.Itoa(svc.DurationMinutes))
	}
	if f.WorkingDays == nil {
		f.WorkingDays = []apiclient.WorkingDay{}
	}
	return f
}

// Update validates an edit of an existing service and builds the PUT body.
func (f Form) Update() (apiclient.ProviderService, error) {
	if strings.TrimSpace(f.ID) == "" {
		return apiclient.ProviderService{}, &FormError{Message: MsgMissingID}
	}
	if strings.TrimSpace(f.ServiceType) == "" {
		return apiclient.ProviderService{}, &FormError{Message: MsgChooseType}
	}
	if strings.TrimSpace(f.Name) == "" {
		return apiclient.ProviderService{}, &FormError{Message: MsgEnterName}
	}
	price, ok := positivePrice(f.Price)
	if !ok {
		return apiclient.ProviderService{}, &FormError{Message: MsgPricePositive}
	}
	duration, ok := positiveInt(f.DurationMinutes)
	if !ok {
		return apiclient.ProviderService{}, &FormError{Message: MsgDurationPositive}
	}
	days, err := normalizeDays(f.WorkingDays)
	if err != nil {
		return apiclient.ProviderService{}, err
	}
	return apiclient.ProviderService{
		ID:              apiclient.ID(strings.TrimSpace(f.ID)),
		ServiceType:     strings.TrimSpace(f.ServiceType),
		Name:            strings.TrimSpace(f.Name),
		Description:     strings.TrimSpace(f.Description),
		Price:           price,
		DurationMinutes: duration,
		WorkingDays:     days,
	}, nil
}

// Registration validates a new service and builds the registration body.
func (f Form) Registration() (apiclient.ServiceRegistration, error) {
	if strings.TrimSpace(f.ProviderEmail) == "" {
		return apiclient.ServiceRegistration{}, &FormError{Message: MsgMissingEmail}
	}
	if strings.TrimSpace(f.ServiceType) == "" {
		return apiclient.ServiceRegistration{}, &FormError{Message: MsgChooseType}
	}
	if strings.TrimSpace(f.Name) == "" {
		return apiclient.ServiceRegistration{}, &FormError{Message: MsgEnterServiceName}
	}
	if strings.TrimSpace(f.Description) == "" {
		return apiclient.ServiceRegistration{}, &FormError{Message: MsgEnterDescription}
	}
	price, ok := positivePrice(f.Price)
	if !ok {
		return apiclient.ServiceRegistration{}, &FormError{Message: MsgPricePositive}
	}
	duration, ok := positiveInt(f.DurationMinutes)
	if !ok {
		return apiclient.ServiceRegistration{}, &FormError{Message: MsgDurationMinutes}
	}
	days, err := normalizeDays(f.WorkingDays)
	if err != nil {
		return apiclient.ServiceRegistration{}, err
	}
	return apiclient.ServiceRegistration{
		ServiceType:     strings.TrimSpace(f.ServiceType),
		Name:            strings.TrimSpace(f.Name),
		Description:     strings.TrimSpace(f.Description),
		Price:           price,
		DurationMinutes: duration,
		ProviderEmail:   strings.TrimSpace(f.ProviderEmail),
		WorkingDays:     days,
	}, nil
}

func positivePrice(raw Text) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// positiveInt accepts integral values only; "30.0" is fine, "30.5" is not.
func positiveInt(raw Text) (int, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil || v <= 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func normalizeDays(days []apiclient.WorkingDay) ([]apiclient.WorkingDay, error) {
	out := make([]apiclient.WorkingDay, 0, len(days))
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		day := strings.ToUpper(strings.TrimSpace(d.DayOfWeek))
		start, okStart := availability.SlotMinutes(d.StartTime)
		end, okEnd := availability.SlotMinutes(d.EndTime)
		if !weekdays[day] || seen[day] || !okStart || !okEnd || start >= end {
			return nil, &FormError{Message: MsgInvalidWorkingDays}
		}
		seen[day] = true
		out = append(out, apiclient.WorkingDay{
			DayOfWeek: day,
			StartTime: strings.TrimSpace(d.StartTime),
			EndTime:   strings.TrimSpace(d.EndTime),
		})
	}
	return out, nil
}
