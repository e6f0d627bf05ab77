// Package booking validates and submits a booking for one service and runs
// the post-booking confirmation sequence.
package booking

import (
	"strings"

	"github.com/wolfman30/reserv/internal/catalog"
)

// ResolveProviderID picks the provider id a booking is submitted with:
// the service's explicit provider id, then the nested provider object's
// id, then the first provider whose name equals the service's provider
// name exactly. Providers synthesized from names only (id == name) never
// resolve. Returns "" when nothing resolves.
func ResolveProviderID(svc catalog.Service, providers []catalog.Provider) string {
	if id := strings.TrimSpace(svc.ProviderID); id != "" {
		return id
	}
	if id := strings.TrimSpace(svc.NestedProviderID); id != "" {
		return id
	}
	if svc.ProviderName == "" {
		return ""
	}
	for _, p := range providers {
		if p.Name == svc.ProviderName && p.ID != "" && p.ID != p.Name {
			return p.ID
		}
	}
	return ""
}

// ProviderName is the display name of the service's provider.
func ProviderName(svc catalog.Service, providers []catalog.Provider) string {
	if svc.ProviderName != "" {
		return svc.ProviderName
	}
	key := svc.ProviderKey()
	for _, p := range providers {
		if key != "" && p.Key() == key {
			return p.Name
		}
	}
	return ""
}
