package reforms

import (
	"math"
	"testing"
)

func strPtr(s string) *string { return &s }

// TestComputeImpactScore_UniversalComplete verifies the best case: every
// dimension universal and intensity complete scores a full 1.0.
func TestComputeImpactScore_UniversalComplete(t *testing.T) {
	got := ComputeImpactScore(
		[]string{UniversalScopeTag},
		[]string{UniversalLandUseTag},
		[]string{UniversalRequirementsTag},
		strPtr(IntensityComplete),
	)
	if got != 1.0 {
		t.Errorf("expected 1.0, got %v", got)
	}
}

// TestComputeImpactScore_PartialAllLimited verifies the worst case: partial
// intensity plus three limited dimensions gives penalty 4 and a zero score.
func TestComputeImpactScore_PartialAllLimited(t *testing.T) {
	got := ComputeImpactScore(
		[]string{"downtown"},
		[]string{"residential"},
		[]string{"conditional"},
		strPtr(IntensityPartial),
	)
	if got != 0.0 {
		t.Errorf("expected 0.0, got %v", got)
	}
}

// TestComputeImpactScore_EmptyCollectionsAreUnlimited verifies that nil and
// empty tag collections count as unlimited, not limited.
func TestComputeImpactScore_EmptyCollectionsAreUnlimited(t *testing.T) {
	got := ComputeImpactScore(nil, []string{}, nil, strPtr(IntensityComplete))
	if got != 1.0 {
		t.Errorf("expected 1.0 for empty collections, got %v", got)
	}
}

// TestComputeImpactScore_UnknownIntensity verifies the 0.5 multiplier for a
// nil intensity and that partial adds a penalty point on top of its 0.7.
func TestComputeImpactScore_UnknownIntensity(t *testing.T) {
	// penalty 0, multiplier 0.5
	if got := ComputeImpactScore(nil, nil, nil, nil); got != 0.5 {
		t.Errorf("nil intensity: expected 0.5, got %v", got)
	}
	// partial alone: penalty 1, multiplier 0.7 -> 0.75 * 0.7 = 0.525
	if got := ComputeImpactScore(nil, nil, nil, strPtr(IntensityPartial)); got != 0.525 {
		t.Errorf("partial intensity: expected 0.525, got %v", got)
	}
	// an unrecognized intensity string behaves like unknown
	if got := ComputeImpactScore(nil, nil, nil, strPtr("aspirational")); got != 0.5 {
		t.Errorf("unrecognized intensity: expected 0.5, got %v", got)
	}
}

// TestComputeImpactScore_Rounding verifies three-decimal rounding: one limited
// dimension with complete intensity is exactly 0.75; with unknown intensity
// 0.375.
func TestComputeImpactScore_Rounding(t *testing.T) {
	if got := ComputeImpactScore([]string{"downtown"}, nil, nil, strPtr(IntensityComplete)); got != 0.75 {
		t.Errorf("expected 0.75, got %v", got)
	}
	if got := ComputeImpactScore([]string{"downtown"}, nil, nil, nil); got != 0.375 {
		t.Errorf("expected 0.375, got %v", got)
	}
}

// TestComputeImpactScore_Bounds sweeps every penalty/intensity combination and
// checks the score stays within [0, 1].
func TestComputeImpactScore_Bounds(t *testing.T) {
	tagOptions := [][]string{nil, {"somewhere"}}
	intensities := []*string{nil, strPtr(IntensityComplete), strPtr(IntensityPartial)}

	for _, scope := range tagOptions {
		for _, landUse := range tagOptions {
			for _, reqs := range tagOptions {
				for _, intensity := range intensities {
					got := ComputeImpactScore(scope, landUse, reqs, intensity)
					if got < 0 || got > 1 {
						t.Errorf("score out of bounds: %v (scope=%v landUse=%v reqs=%v intensity=%v)",
							got, scope, landUse, reqs, intensity)
					}
				}
			}
		}
	}
}

// TestIsUnlimited verifies the universal-tag membership rule, including mixed
// collections where the universal tag rides along with narrower tags.
func TestIsUnlimited(t *testing.T) {
	if !IsUnlimited(nil, UniversalScopeTag) {
		t.Error("nil collection should be unlimited")
	}
	if !IsUnlimited([]string{"downtown", UniversalScopeTag}, UniversalScopeTag) {
		t.Error("collection containing the universal tag should be unlimited")
	}
	if IsUnlimited([]string{"downtown"}, UniversalScopeTag) {
		t.Error("collection without the universal tag should be limited")
	}
}

// TestPopulationLog verifies the log10 transform and its floor at 1.
func TestPopulationLog(t *testing.T) {
	if got := PopulationLog(1_000_000); got != 6 {
		t.Errorf("expected 6, got %v", got)
	}
	if got := PopulationLog(0); got != 0 {
		t.Errorf("expected 0 for zero population, got %v", got)
	}
	if got := PopulationLog(-5); got != 0 {
		t.Errorf("expected 0 for negative population, got %v", got)
	}
	if got := PopulationLog(50_000); math.Abs(got-4.69897) > 1e-5 {
		t.Errorf("expected ~4.69897, got %v", got)
	}
}
