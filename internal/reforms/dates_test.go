package reforms

import (
	"testing"
	"time"
)

// TestParseFlexibleDate covers the accepted shapes and the snapping of
// partial dates to the start of their period.
func TestParseFlexibleDate(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2021-06-15", time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"2021-06", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{"2021", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"6/15/2021", time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"2021-06-15T00:00:00", time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{" 2021-06-15 ", time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"June 2021", time.Time{}, false},
		{"21", time.Time{}, false},
		{"2021-13", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := ParseFlexibleDate(c.raw)
		if ok != c.ok {
			t.Errorf("ParseFlexibleDate(%q): expected ok=%v, got %v", c.raw, c.ok, ok)
			continue
		}
		if ok && !got.Equal(c.want) {
			t.Errorf("ParseFlexibleDate(%q): expected %v, got %v", c.raw, c.want, got)
		}
	}
}
