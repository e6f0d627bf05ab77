package appointments

import (
	"slices"
	"strings"
	"time"
)

// Tab selects which partition a list view shows.
type Tab string

const (
	TabUpcoming Tab = "upcoming"
	TabPast     Tab = "past"
	TabAll      Tab = "all"
)

// ParseTab defaults to TabUpcoming for unknown values.
func ParseTab(raw string) Tab {
	switch Tab(strings.ToLower(strings.TrimSpace(raw))) {
	case TabPast:
		return TabPast
	case TabAll:
		return TabAll
	default:
		return TabUpcoming
	}
}

// Partitioned is a list split around a single "now".
type Partitioned struct {
	Upcoming []Appointment `json:"upcoming"`
	Past     []Appointment `json:"past"`
	All      []Appointment `json:"all"`
}

// Pick returns the slice for tab.
func (p Partitioned) Pick(tab Tab) []Appointment {
	switch tab {
	case TabPast:
		return p.Past
	case TabAll:
		return p.All
	default:
		return p.Upcoming
	}
}

// Partition splits list into appointments that have not ended by now
// (soonest start first) and those that have (latest start first). All is
// Upcoming followed by Past. list is not modified.
func Partition(list []Appointment, now time.Time) Partitioned {
	p := Partitioned{
		Upcoming: make([]Appointment, 0, len(list)),
		Past:     make([]Appointment, 0, len(list)),
	}
	for _, a := range list {
		if !a.EndDateTime.Before(now) {
			p.Upcoming = append(p.Upcoming, a)
		} else {
			p.Past = append(p.Past, a)
		}
	}
	slices.SortStableFunc(p.Upcoming, func(a, b Appointment) int {
		return a.StartDateTime.Compare(b.StartDateTime)
	})
	slices.SortStableFunc(p.Past, func(a, b Appointment) int {
		return b.StartDateTime.Compare(a.StartDateTime)
	})
	p.All = make([]Appointment, 0, len(list))
	p.All = append(p.All, p.Upcoming...)
	p.All = append(p.All, p.Past...)
	return p
}

// Search keeps appointments whose name, service type or user names contain
// query, case-insensitively.
func Search(list []Appointment, query string) []Appointment {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list
	}
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		if strings.Contains(strings.ToLower(a.Name), query) ||
			strings.Contains(strings.ToLower(a.ServiceType), query) ||
			strings.Contains(strings.ToLower(a.UserNames), query) {
			out = append(out, a)
		}
	}
	return out
}

// InRange keeps appointments whose start falls on a calendar day between
// from and to ("YYYY-MM-DD", both inclusive). An empty bound is open.
func InRange(list []Appointment, from, to string) []Appointment {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return list
	}
	out := make([]Appointment, 0, len(list))
	for _, a := range list {
		day := a.StartDateTime.Format("2006-01-02")
		if from != "" && day < from {
			continue
		}
		if to != "" && day > to {
			continue
		}
		out = append(out, a)
	}
	return out
}
