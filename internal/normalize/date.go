package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	bareYear     = regexp.MustCompile(`^\d{4}$`)
	yearMonth    = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	embeddedYear = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

// Date maps a date-like string to YYYY-MM-DD, or nil when nothing usable is found.
// Forms are tried in order: bare year, year-month, ISO date, embedded 19xx/20xx year.
func Date(raw string) *string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return nil
	case bareYear.MatchString(s):
		return ptr(s + "-01-01")
	case yearMonth.MatchString(s):
		m := yearMonth.FindStringSubmatch(s)
		if month, _ := strconv.Atoi(m[2]); month >= 1 && month <= 12 {
			return ptr(fmt.Sprintf("%s-%02d-01", m[1], month))
		}
	case isoDate.MatchString(s):
		return ptr(s)
	}
	if y := embeddedYear.FindString(s); y != "" {
		return ptr(y + "-01-01")
	}
	return nil
}

// DatePtr applies Date to a non-nil value.
func DatePtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	return Date(*raw)
}

// Year returns the year component of a normalized date.
func Year(date *string) *int {
	if date == nil || len(*date) < 4 {
		return nil
	}
	y, err := strconv.Atoi((*date)[:4])
	if err != nil {
		return nil
	}
	return &y
}

func ptr(s string) *string { return &s }
