package availability

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// SlotMinutes converts "HH:mm" to minutes since midnight.
func SlotMinutes(slot string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(slot), ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FilterPast drops the slots of date that have already started at now.
// Only applies when date is now's calendar day; other dates are returned
// unchanged. A slot starting at the current minute counts as started.
func FilterPast(slots []string, date string, now time.Time) []string {
	if date != now.Format(dateLayout) {
		return slots
	}
	current := now.Hour()*60 + now.Minute()
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if m, ok := SlotMinutes(s); ok && m > current {
			out = append(out, s)
		}
	}
	return out
}

// ValidDate reports whether date is a YYYY-MM-DD calendar date.
func ValidDate(date string) bool {
	_, err := time.Parse(dateLayout, date)
	return err == nil
}
