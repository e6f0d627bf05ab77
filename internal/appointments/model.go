// Package appointments is the view-model behind the client and provider
// appointment lists.
package appointments

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/reserv/internal/apiclient"
)

// Appointment is a read-only booking as returned by the backend.
type Appointment struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	UserNames         string    `json:"userNames,omitempty"`
	StartDateTime     time.Time `json:"startDateTime"`
	EndDateTime       time.Time `json:"endDateTime"`
	DurationInMinutes int       `json:"durationInMinutes"`
	Price             float64   `json:"price"`
	ServiceType       string    `json:"serviceType"`
	Status            string    `json:"status,omitempty"`
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDateTime parses a backend date-time. Zone-less values are read in
// loc; RFC 3339 values keep their offset.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("appointments: unrecognized date-time %q", raw)
}

// FromDTO maps a backend appointment. A missing end time is derived from
// the duration.
func FromDTO(d apiclient.AppointmentDTO, loc *time.Location) (Appointment, error) {
	start, err := ParseDateTime(d.StartDateTime, loc)
	if err != nil {
		return Appointment{}, err
	}
	end := start.Add(time.Duration(d.DurationInMinutes) * time.Minute)
	if strings.TrimSpace(d.EndDateTime) != "" {
		if end, err = ParseDateTime(d.EndDateTime, loc); err != nil {
			return Appointment{}, err
		}
	}
	return Appointment{
		ID:                d.ID.String(),
		Name:              d.Name,
		UserNames:         d.UserNames,
		StartDateTime:     start,
		EndDateTime:       end,
		DurationInMinutes: d.DurationInMinutes,
		Price:             d.Price,
		ServiceType:       d.ServiceType,
		Status:            d.Status,
	}, nil
}
