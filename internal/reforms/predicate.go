package reforms

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Predicate is one independent boolean condition over reform or place
// columns. Every variant renders itself to a parameterized SQL fragment
// through SQL(), so predicate composition is testable without a database
// and placeholders can never drift from their arguments.
type Predicate interface {
	SQL() (string, []any)
}

// PredicateSet is the compiler output shared by all three projections.
// Place predicates reference the joined places table; reform predicates
// reference reforms columns.
type PredicateSet struct {
	Place  []Predicate
	Reform []Predicate

	// CategoryRestriction is non-empty only when a reform-type filter is
	// present; the ranking projection counts only categories whose types
	// intersect it.
	CategoryRestriction []string
}

// Apply renders every predicate onto a GORM query.
func (ps PredicateSet) Apply(q *gorm.DB) *gorm.DB {
	for _, p := range ps.Place {
		sql, args := p.SQL()
		q = q.Where(sql, args...)
	}
	for _, p := range ps.Reform {
		sql, args := p.SQL()
		q = q.Where(sql, args...)
	}
	return q
}

// EnumMembership matches a column against a value set.
type EnumMembership struct {
	Column string
	Values []string
}

func (p EnumMembership) SQL() (string, []any) {
	return p.Column + " IN ?", []any{p.Values}
}

// ReformTypeMembership matches reforms linked to any of the given type codes
// through the many-to-many join.
type ReformTypeMembership struct {
	Codes []string
}

func (p ReformTypeMembership) SQL() (string, []any) {
	return `reforms.id IN (SELECT rrt.reform_id FROM atlas.reform_reform_types rrt
		JOIN atlas.reform_types rt ON rt.id = rrt.reform_type_id WHERE rt.code IN ?)`,
		[]any{p.Codes}
}

// PopulationRange bounds a numeric column; either end may be open. The lower
// bound is always inclusive; MaxExclusive makes the upper bound half-open so
// adjacent bucket bands cannot both claim a threshold value.
type PopulationRange struct {
	Column       string
	Min          *int64
	Max          *int64
	MaxExclusive bool
}

func (p PopulationRange) SQL() (string, []any) {
	maxOp := " <= ?"
	if p.MaxExclusive {
		maxOp = " < ?"
	}
	switch {
	case p.Min != nil && p.Max != nil:
		return p.Column + " >= ? AND " + p.Column + maxOp, []any{*p.Min, *p.Max}
	case p.Min != nil:
		return p.Column + " >= ?", []any{*p.Min}
	case p.Max != nil:
		return p.Column + maxOp, []any{*p.Max}
	}
	return "1=1", nil
}

// TagMembership implements the limitation test for one tag-collection
// dimension. Unlimited = NULL, empty, or containing the universal tag;
// has-limits is the exact complement.
type TagMembership struct {
	Column       string
	UniversalTag string
	HasLimits    bool
}

func (p TagMembership) SQL() (string, []any) {
	if p.HasLimits {
		return fmt.Sprintf("(%s IS NOT NULL AND cardinality(%s) > 0 AND NOT (? = ANY(%s)))",
			p.Column, p.Column, p.Column), []any{p.UniversalTag}
	}
	return fmt.Sprintf("(%s IS NULL OR cardinality(%s) = 0 OR ? = ANY(%s))",
		p.Column, p.Column, p.Column), []any{p.UniversalTag}
}

// IntensityLimitation is the binary analog for the intensity dimension:
// no_limits = complete or NULL, has_limits = partial.
type IntensityLimitation struct {
	HasLimits bool
}

func (p IntensityLimitation) SQL() (string, []any) {
	if p.HasLimits {
		return "reforms.intensity = ?", []any{IntensityPartial}
	}
	return "(reforms.intensity = ? OR reforms.intensity IS NULL)", []any{IntensityComplete}
}

// DateRange filters adoption dates. With bounds, a NULL date matches only
// when IncludeUnknown is set (the OR wraps the bound check). With no bounds
// and IncludeUnknown unset, an explicit not-null check applies.
type DateRange struct {
	From           *time.Time
	To             *time.Time
	IncludeUnknown bool
}

func (p DateRange) SQL() (string, []any) {
	var cond string
	var args []any
	switch {
	case p.From != nil && p.To != nil:
		cond = "reforms.adoption_date >= ? AND reforms.adoption_date <= ?"
		args = []any{*p.From, *p.To}
	case p.From != nil:
		cond = "reforms.adoption_date >= ?"
		args = []any{*p.From}
	case p.To != nil:
		cond = "reforms.adoption_date <= ?"
		args = []any{*p.To}
	default:
		if p.IncludeUnknown {
			return "1=1", nil
		}
		return "reforms.adoption_date IS NOT NULL", nil
	}

	if p.IncludeUnknown {
		return "((" + cond + ") OR reforms.adoption_date IS NULL)", args
	}
	return "(" + cond + ")", args
}

// BoolEquals matches a boolean column exactly.
type BoolEquals struct {
	Column string
	Value  bool
}

func (p BoolEquals) SQL() (string, []any) {
	return p.Column + " = ?", []any{p.Value}
}

// bucketBounds translates a size bucket into half-open [min, max) population
// bounds. States use the 2M/10M table; cities and counties use 50K/500K/2M.
// The table is picked by the place_type the caller supplied (anything but
// "state", including absent, uses the city/county table).
func bucketBounds(bucket, placeType string) (min, max *int64) {
	n := func(v int64) *int64 { return &v }
	if placeType == PlaceTypeState {
		switch bucket {
		case SizeSmall:
			return nil, n(2_000_000)
		case SizeMedium:
			return n(2_000_000), n(10_000_000)
		case SizeLarge, SizeVeryLarge:
			return n(10_000_000), nil
		}
		return nil, nil
	}
	switch bucket {
	case SizeSmall:
		return nil, n(50_000)
	case SizeMedium:
		return n(50_000), n(500_000)
	case SizeLarge:
		return n(500_000), n(2_000_000)
	case SizeVeryLarge:
		return n(2_000_000), nil
	}
	return nil, nil
}

// yearStart/yearEnd give the inclusive date bounds of a year range.
func yearStart(y int) time.Time { return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC) }
func yearEnd(y int) time.Time   { return time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC) }

// Compile turns a FilterSpec into the predicate set shared by every
// projection. Predicate order is fixed; the hidden-exclusion predicate is
// always appended last and is not caller-controllable.
func Compile(spec FilterSpec) PredicateSet {
	var ps PredicateSet

	// Place-level dimensions.
	if spec.PlaceType != "" {
		ps.Place = append(ps.Place, EnumMembership{Column: "places.place_type", Values: []string{spec.PlaceType}})
	}
	if len(spec.States) > 0 {
		ps.Place = append(ps.Place, EnumMembership{Column: "places.state_code", Values: spec.States})
	}
	if spec.Region != "" {
		if codes, ok := RegionCodes(spec.Region); ok && len(codes) > 0 {
			ps.Place = append(ps.Place, EnumMembership{Column: "places.state_code", Values: codes})
		}
	}

	minPop, maxPop := spec.MinPopulation, spec.MaxPopulation
	maxExclusive := false
	if spec.SizeBucket != "" && minPop == nil && maxPop == nil {
		// Bucket bands are half-open [min, max) so a population sitting on a
		// threshold lands in exactly one band. Caller-supplied bounds stay
		// inclusive on both ends.
		minPop, maxPop = bucketBounds(spec.SizeBucket, spec.PlaceType)
		maxExclusive = true
	}
	if minPop != nil || maxPop != nil {
		ps.Place = append(ps.Place, PopulationRange{
			Column: "places.population", Min: minPop, Max: maxPop, MaxExclusive: maxExclusive,
		})
	}

	// Reform-level dimensions.
	if len(spec.ReformTypes) > 0 {
		ps.Reform = append(ps.Reform, ReformTypeMembership{Codes: spec.ReformTypes})
		ps.CategoryRestriction = spec.ReformTypes
	}
	if len(spec.Statuses) > 0 {
		ps.Reform = append(ps.Reform, EnumMembership{Column: "reforms.status", Values: spec.Statuses})
	}

	dr := DateRange{IncludeUnknown: spec.IncludeUnknownDates}
	if spec.FromYear != nil {
		t := yearStart(*spec.FromYear)
		dr.From = &t
	}
	if spec.ToYear != nil {
		t := yearEnd(*spec.ToYear)
		dr.To = &t
	}
	if dr.From != nil || dr.To != nil || !dr.IncludeUnknown {
		ps.Reform = append(ps.Reform, dr)
	}

	if spec.Scope != LimitUnset {
		ps.Reform = append(ps.Reform, TagMembership{
			Column: "reforms.scope", UniversalTag: UniversalScopeTag,
			HasLimits: spec.Scope == LimitHasLimits,
		})
	}
	if spec.LandUse != LimitUnset {
		ps.Reform = append(ps.Reform, TagMembership{
			Column: "reforms.land_use", UniversalTag: UniversalLandUseTag,
			HasLimits: spec.LandUse == LimitHasLimits,
		})
	}
	if spec.Requirements != LimitUnset {
		ps.Reform = append(ps.Reform, TagMembership{
			Column: "reforms.requirements", UniversalTag: UniversalRequirementsTag,
			HasLimits: spec.Requirements == LimitHasLimits,
		})
	}
	if spec.Intensity != LimitUnset {
		ps.Reform = append(ps.Reform, IntensityLimitation{HasLimits: spec.Intensity == LimitHasLimits})
	}

	// Hidden reforms never leave the building.
	ps.Reform = append(ps.Reform, BoolEquals{Column: "reforms.hidden", Value: false})

	return ps
}
