package reforms

import "math"

// Intensity values. Anything else (including NULL) is treated as unknown.
const (
	IntensityComplete = "complete"
	IntensityPartial  = "partial"
)

// Universal tags: a tag collection containing its universal tag applies
// jurisdiction-wide and counts as unlimited for scoring and filtering.
const (
	UniversalScopeTag        = "citywide"
	UniversalLandUseTag      = "all uses"
	UniversalRequirementsTag = "by right"
)

// IsUnlimited reports whether a limitation tag collection is unlimited:
// empty/absent, or containing the dimension's universal tag.
func IsUnlimited(tags []string, universal string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if t == universal {
			return true
		}
	}
	return false
}

// ComputeImpactScore derives the bounded [0,1] composite score from a
// reform's limitation fields.
//
// Penalty: +1 for each of scope/land_use/requirements that is limited,
// +1 if intensity is partial. Multiplier: 1.0 complete, 0.7 partial,
// 0.5 otherwise. Score = round((1 - penalty/4) * multiplier, 3).
func ComputeImpactScore(scope, landUse, requirements []string, intensity *string) float64 {
	penalty := 0
	if !IsUnlimited(scope, UniversalScopeTag) {
		penalty++
	}
	if !IsUnlimited(landUse, UniversalLandUseTag) {
		penalty++
	}
	if !IsUnlimited(requirements, UniversalRequirementsTag) {
		penalty++
	}

	multiplier := 0.5
	if intensity != nil {
		switch *intensity {
		case IntensityComplete:
			multiplier = 1.0
		case IntensityPartial:
			multiplier = 0.7
			penalty++
		}
	}

	score := (1 - float64(penalty)/4) * multiplier
	return math.Round(score*1000) / 1000
}

// PopulationLog is log10 of the population, floored at 1 so zero and negative
// counts never produce -Inf.
func PopulationLog(population int64) float64 {
	return math.Log10(math.Max(float64(population), 1))
}
