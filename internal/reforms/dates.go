package reforms

import (
	"strings"
	"time"
)

// ParseFlexibleDate accepts the date shapes tracker sources actually emit
// (YYYY, YYYY-MM, YYYY-MM-DD, M/D/YYYY, optionally with a time suffix) and
// returns a normalized date. Partial dates snap to the first of the period.
// Unparseable input returns (zero, false); callers treat that as unknown.
func ParseFlexibleDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	// Drop any time component.
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}

	if strings.Contains(s, "/") {
		if t, err := time.Parse("1/2/2006", s); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	switch strings.Count(s, "-") {
	case 0:
		if t, err := time.Parse("2006", s); err == nil && len(s) == 4 {
			return t, true
		}
	case 1:
		if t, err := time.Parse("2006-01", s); err == nil {
			return t, true
		}
	case 2:
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
