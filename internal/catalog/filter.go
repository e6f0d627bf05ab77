package catalog

import "strings"

// Criteria is the catalog page's filter state. Empty Category or Provider
// behave like All.
type Criteria struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Provider string `json:"provider"`
}

// Filter returns the services matching c, in input order. It never
// mutates services.
func Filter(services []Service, c Criteria, providers Index) []Service {
	query := strings.ToLower(strings.TrimSpace(c.Query))
	out := make([]Service, 0, len(services))
	for _, s := range services {
		if matchesQuery(s, query) && matchesCategory(s, c.Category) && matchesProvider(s, c.Provider, providers) {
			out = append(out, s)
		}
	}
	return out
}

func matchesQuery(s Service, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Title), query) ||
		strings.Contains(strings.ToLower(s.Description), query)
}

func matchesCategory(s Service, category string) bool {
	return category == "" || category == All || s.Category == category
}

// matchesProvider compares by id first and falls back to names when the
// ids are absent on either side.
func matchesProvider(s Service, selected string, providers Index) bool {
	if selected == "" || selected == All {
		return true
	}
	key := s.ProviderKey()
	if key == selected {
		return true
	}
	want, ok := providers[selected]
	if !ok || want.Name == "" {
		return false
	}
	if s.ProviderName == want.Name {
		return true
	}
	if have, ok := providers[key]; ok && have.Name == want.Name {
		return true
	}
	return false
}
