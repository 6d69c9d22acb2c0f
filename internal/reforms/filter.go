package reforms

import (
	"net/url"
	"strconv"
	"strings"
)

// Limitation filter states for scope/land_use/requirements/intensity.
type LimitFilter string

const (
	LimitUnset     LimitFilter = ""
	LimitNoLimits  LimitFilter = "no_limits"
	LimitHasLimits LimitFilter = "has_limits"
)

// Population size buckets. Threshold tables differ for states vs
// cities/counties; see bucketBounds.
const (
	SizeSmall     = "small"
	SizeMedium    = "medium"
	SizeLarge     = "large"
	SizeVeryLarge = "very_large"
)

const (
	DefaultMoversLimit = 10
	MaxMoversLimit     = 100
)

// FilterSpec is the validated, normalized form of every recognized filter
// dimension. It is immutable by convention: parsed once per request and
// passed by value into the predicate compiler.
type FilterSpec struct {
	ReformTypes []string
	PlaceType   string
	States      []string // canonical division codes
	Region      string
	Statuses    []string // lowercased

	FromYear            *int
	ToYear              *int
	IncludeUnknownDates bool

	MinPopulation *int64
	MaxPopulation *int64
	SizeBucket    string

	Scope        LimitFilter
	LandUse      LimitFilter
	Requirements LimitFilter
	Intensity    LimitFilter

	Limit int
}

// multiValues gathers a dimension's values from repeated keys and/or a
// single comma-separated value.
func multiValues(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseLimitFilter(q url.Values, key string) LimitFilter {
	switch q.Get(key) {
	case string(LimitNoLimits):
		return LimitNoLimits
	case string(LimitHasLimits):
		return LimitHasLimits
	}
	return LimitUnset
}

func parseYear(q url.Values, key string) *int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < 1000 || y > 9999 {
		return nil
	}
	return &y
}

func parseInt64(q url.Values, key string) *int64 {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

var validPlaceTypes = map[string]struct{}{
	PlaceTypeCity:   {},
	PlaceTypeCounty: {},
	PlaceTypeState:  {},
}

var validSizeBuckets = map[string]struct{}{
	SizeSmall:     {},
	SizeMedium:    {},
	SizeLarge:     {},
	SizeVeryLarge: {},
}

// ParseFilterSpec builds a FilterSpec from wire-encoded query parameters.
// Unrecognized enum values are dropped, never rejected: filters are advisory
// narrowing, and old/new clients must be able to send dimensions this
// version doesn't know.
func ParseFilterSpec(q url.Values) FilterSpec {
	spec := FilterSpec{Limit: DefaultMoversLimit}

	spec.ReformTypes = multiValues(q, "reform_type")

	if pt := strings.ToLower(strings.TrimSpace(q.Get("place_type"))); pt != "" {
		if _, ok := validPlaceTypes[pt]; ok {
			spec.PlaceType = pt
		}
	}

	for _, s := range multiValues(q, "state") {
		if code, ok := NormalizeDivision(s); ok {
			spec.States = append(spec.States, code)
		}
	}

	if region := strings.ToLower(strings.TrimSpace(q.Get("region"))); region != "" {
		if _, ok := RegionCodes(region); ok {
			spec.Region = region
		}
	}

	for _, s := range multiValues(q, "status") {
		spec.Statuses = append(spec.Statuses, strings.ToLower(s))
	}

	spec.FromYear = parseYear(q, "from_year")
	spec.ToYear = parseYear(q, "to_year")
	spec.IncludeUnknownDates = q.Get("include_unknown_dates") == "true"

	spec.MinPopulation = parseInt64(q, "min_population")
	spec.MaxPopulation = parseInt64(q, "max_population")
	if size := strings.ToLower(strings.TrimSpace(q.Get("size"))); size != "" {
		if _, ok := validSizeBuckets[size]; ok {
			spec.SizeBucket = size
		}
	}

	spec.Scope = parseLimitFilter(q, "scope_limitation")
	spec.LandUse = parseLimitFilter(q, "land_use_limitation")
	spec.Requirements = parseLimitFilter(q, "requirements_limitation")
	spec.Intensity = parseLimitFilter(q, "intensity_limitation")

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			if n > MaxMoversLimit {
				n = MaxMoversLimit
			}
			spec.Limit = n
		}
	}

	return spec
}
