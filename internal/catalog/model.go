// Package catalog maps the backend service catalog into view-model values
// and filters it for the booking page.
package catalog

import (
	"strings"

	"github.com/wolfman30/reserv/internal/apiclient"
)

// All is the filter sentinel that matches every category or provider.
const All = "All"

// UnknownProvider names a derived provider whose services carry no name.
const UnknownProvider = "Unknown"

// Service is an immutable snapshot of one bookable service.
type Service struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Price            float64 `json:"price"`
	DurationMinutes  int     `json:"durationMinutes"`
	Category         string  `json:"category"`
	ProviderID       string  `json:"providerId,omitempty"`
	NestedProviderID string  `json:"-"`
	ProviderName     string  `json:"providerName,omitempty"`
}

// ProviderKey is the identity used to match a service against the provider
// index: the explicit id, then the nested id, then the name.
func (s Service) ProviderKey() string {
	switch {
	case s.ProviderID != "":
		return s.ProviderID
	case s.NestedProviderID != "":
		return s.NestedProviderID
	default:
		return s.ProviderName
	}
}

type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Key is the provider's id, or its name when the id is unknown.
func (p Provider) Key() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}

// Index looks providers up by Key.
type Index map[string]Provider

func NewIndex(providers []Provider) Index {
	idx := make(Index, len(providers))
	for _, p := range providers {
		idx[p.Key()] = p
	}
	return idx
}

// PrettyCategory turns a backend enum such as "PERSONAL_TRAINING" into
// "Personal training".
func PrettyCategory(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(strings.ReplaceAll(raw, "_", " "))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// FromDTO maps a backend service. The explicit provider id wins over the
// legacy trainer id; the nested provider object is kept separately.
func FromDTO(d apiclient.ServiceDTO) Service {
	id := d.ServiceID.String()
	if id == "" {
		id = d.ID.String()
	}
	explicit := d.ProviderID.String()
	if explicit == "" {
		explicit = d.TrainerID.String()
	}

	svc := Service{
		ID:              id,
		Title:           strings.TrimSpace(d.Name),
		Description:     strings.TrimSpace(d.Description),
		Price:           d.Price,
		DurationMinutes: d.Duration,
		Category:        PrettyCategory(d.ServiceType),
		ProviderID:      explicit,
	}

	first, last := strings.TrimSpace(d.ProviderFirstName), strings.TrimSpace(d.ProviderLastName)
	switch {
	case first != "" && last != "":
		svc.ProviderName = first + " " + last
	case d.Provider != nil:
		svc.ProviderName = joinName(d.Provider.FirstName, d.Provider.LastName)
	}
	if d.Provider != nil {
		svc.NestedProviderID = d.Provider.ID.String()
	}
	return svc
}

func FromDTOs(list []apiclient.ServiceDTO) []Service {
	out := make([]Service, 0, len(list))
	for _, d := range list {
		out = append(out, FromDTO(d))
	}
	return out
}

// ProvidersFromDTO maps /api/all-providers.
func ProvidersFromDTO(list []apiclient.ProviderRef) []Provider {
	out := make([]Provider, 0, len(list))
	for _, p := range list {
		out = append(out, Provider{ID: p.ID.String(), Name: joinName(p.FirstName, p.LastName)})
	}
	return out
}

// DeriveProviders synthesizes the provider list from the services, one per
// distinct provider name, in first-seen order.
func DeriveProviders(services []Service) []Provider {
	seen := make(map[string]bool)
	var out []Provider
	for _, s := range services {
		name := s.ProviderName
		if name == "" {
			name = UnknownProvider
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		id := s.ProviderID
		if id == "" {
			id = s.NestedProviderID
		}
		if id == "" {
			id = name
		}
		out = append(out, Provider{ID: id, Name: name})
	}
	return out
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
