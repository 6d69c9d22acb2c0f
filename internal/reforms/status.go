package reforms

import "strings"

// Canonical statuses assigned at ingestion and submission boundaries.
// Stored status stays free-form (lowercased) so unusual historical values
// survive; filtering matches whatever is stored.
const (
	StatusAdopted  = "adopted"
	StatusFailed   = "failed"
	StatusProposed = "proposed"
)

var adoptedStatuses = map[string]struct{}{
	"approved": {}, "enacted": {}, "effective": {}, "signed": {},
	"signed by governor": {}, "adopted": {},
}

var failedStatuses = map[string]struct{}{
	"denied/rejected": {}, "denied": {}, "rejected": {}, "vetoed": {},
	"failed": {}, "died": {}, "defeat": {},
}

var proposedStatuses = map[string]struct{}{
	"early process": {}, "late process": {}, "introduced": {}, "in committee": {},
	"passed chamber": {}, "introduced or prefiled": {}, "passed original chamber": {},
	"passed second chamber": {}, "out of committee": {}, "proposed": {},
}

// NormalizeStatus maps free-form source statuses onto the canonical set,
// defaulting to proposed for anything unrecognized.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusProposed
	}

	if _, ok := adoptedStatuses[s]; ok {
		return StatusAdopted
	}
	if _, ok := failedStatuses[s]; ok {
		return StatusFailed
	}
	if _, ok := proposedStatuses[s]; ok {
		return StatusProposed
	}

	// Heuristic partial matches for long-form legislative phrasing.
	switch {
	case strings.Contains(s, "effective"), strings.Contains(s, "signed"), strings.Contains(s, "enacted"):
		return StatusAdopted
	case strings.Contains(s, "fail"), strings.Contains(s, "veto"), strings.Contains(s, "died"), strings.Contains(s, "defeat"):
		return StatusFailed
	}

	return StatusProposed
}
