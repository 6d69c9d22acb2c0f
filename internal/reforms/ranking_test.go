package reforms

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

// rowsFor builds one mover row per (place, type) with an optional category.
func rowsFor(placeID uint, name string, typeCodes []string, categories []string) []moverRow {
	rows := make([]moverRow, 0, len(typeCodes))
	for i, code := range typeCodes {
		cat := ""
		if i < len(categories) {
			cat = categories[i]
		}
		rows = append(rows, moverRow{
			PlaceID:      placeID,
			PlaceName:    name,
			StateCode:    "CA",
			TypeCode:     code,
			CategoryName: cat,
		})
	}
	return rows
}

// TestRankMovers_MembershipByRankDisplayAlphabetical verifies that rank order
// decides who makes the cut but the returned slice is alphabetical.
func TestRankMovers_MembershipByRankDisplayAlphabetical(t *testing.T) {
	var rows []moverRow
	// Zed has 3 types, Alpha has 2, Mid has 1. Limit 2 keeps Zed and Alpha.
	rows = append(rows, rowsFor(1, "Zed", []string{"a", "b", "c"}, []string{"Housing", "Parking", "Zoning"})...)
	rows = append(rows, rowsFor(2, "Alpha", []string{"a", "b"}, []string{"Housing", "Parking"})...)
	rows = append(rows, rowsFor(3, "Mid", []string{"a"}, []string{"Housing"})...)

	out := RankMovers(rows, nil, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 movers, got %d", len(out))
	}
	if out[0].Name != "Alpha" || out[1].Name != "Zed" {
		t.Errorf("expected alphabetical [Alpha Zed], got [%s %s]", out[0].Name, out[1].Name)
	}
	if out[1].ReformTypeCount != 3 || out[1].CategoryCount != 3 {
		t.Errorf("unexpected Zed counts: %+v", out[1])
	}
}

// TestRankMovers_DistinctCounting verifies duplicate (place, type) rows do not
// inflate counts.
func TestRankMovers_DistinctCounting(t *testing.T) {
	rows := []moverRow{
		{PlaceID: 1, PlaceName: "Oakdale", StateCode: "CA", TypeCode: "a", CategoryName: "Housing"},
		{PlaceID: 1, PlaceName: "Oakdale", StateCode: "CA", TypeCode: "a", CategoryName: "Housing"},
		{PlaceID: 1, PlaceName: "Oakdale", StateCode: "CA", TypeCode: "b", CategoryName: "Housing"},
	}
	out := RankMovers(rows, nil, 10)
	if len(out) != 1 {
		t.Fatalf("expected 1 mover, got %d", len(out))
	}
	if out[0].ReformTypeCount != 2 {
		t.Errorf("expected 2 distinct types, got %d", out[0].ReformTypeCount)
	}
	if out[0].CategoryCount != 1 {
		t.Errorf("expected 1 distinct category, got %d", out[0].CategoryCount)
	}
}

// TestRankMovers_NameTiebreakDecidesMembership verifies the alphabetical
// tiebreak when counts are equal at the cut line.
func TestRankMovers_NameTiebreakDecidesMembership(t *testing.T) {
	var rows []moverRow
	rows = append(rows, rowsFor(1, "Burlington", []string{"a"}, []string{"Housing"})...)
	rows = append(rows, rowsFor(2, "Ashland", []string{"b"}, []string{"Housing"})...)

	out := RankMovers(rows, nil, 1)
	if len(out) != 1 || out[0].Name != "Ashland" {
		t.Fatalf("expected tiebreak to keep Ashland, got %+v", out)
	}
}

// TestRankMovers_CategoryRestriction verifies only categories reachable from
// the filtered type codes are counted.
func TestRankMovers_CategoryRestriction(t *testing.T) {
	rows := []moverRow{
		{PlaceID: 1, PlaceName: "Oakdale", StateCode: "CA", TypeCode: "a", CategoryName: "Housing"},
		{PlaceID: 1, PlaceName: "Oakdale", StateCode: "CA", TypeCode: "b", CategoryName: "Parking"},
	}

	out := RankMovers(rows, []string{"a"}, 10)
	if len(out) != 1 {
		t.Fatalf("expected 1 mover, got %d", len(out))
	}
	if out[0].CategoryCount != 1 {
		t.Errorf("expected restricted category count 1, got %d", out[0].CategoryCount)
	}
	if len(out[0].Categories) != 1 || out[0].Categories[0] != "Housing" {
		t.Errorf("expected categories [Housing], got %v", out[0].Categories)
	}
}

// TestRankMovers_EmptyCategorySkipped verifies uncategorized types still count
// toward the type total but never produce a phantom category.
func TestRankMovers_EmptyCategorySkipped(t *testing.T) {
	rows := []moverRow{
		{PlaceID: 1, PlaceName: "Oakdale", StateCode: "CA", TypeCode: "a", CategoryName: ""},
	}
	out := RankMovers(rows, nil, 10)
	if len(out) != 1 {
		t.Fatalf("expected 1 mover, got %d", len(out))
	}
	if out[0].ReformTypeCount != 1 || out[0].CategoryCount != 0 {
		t.Errorf("unexpected counts: %+v", out[0])
	}
}

// TestRankMovers_ConcurrentCalls verifies ranking is safe under concurrent
// requests; collation must not share mutable state between calls. Run with
// -race to catch regressions.
func TestRankMovers_ConcurrentCalls(t *testing.T) {
	var rows []moverRow
	for i := 1; i <= 20; i++ {
		rows = append(rows, rowsFor(uint(i), fmt.Sprintf("Place%02d", i),
			[]string{"a", "b"}, []string{"Housing", "Parking"})...)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				out := RankMovers(rows, nil, 5)
				if len(out) != 5 {
					t.Errorf("expected 5 movers, got %d", len(out))
					return
				}
			}
		}()
	}
	wg.Wait()
}

// TestRankMovers_LimitAndDefault verifies the cut at limit and the fallback to
// the default for non-positive limits.
func TestRankMovers_LimitAndDefault(t *testing.T) {
	var rows []moverRow
	for i := 1; i <= 15; i++ {
		rows = append(rows, rowsFor(uint(i), fmt.Sprintf("Place%02d", i), []string{"a"}, []string{"Housing"})...)
	}

	out := RankMovers(rows, nil, 0)
	if len(out) != DefaultMoversLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultMoversLimit, len(out))
	}
	if !sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Name < out[j].Name }) {
		t.Error("expected alphabetical output")
	}

	out = RankMovers(rows, nil, 3)
	if len(out) != 3 {
		t.Errorf("expected 3 movers, got %d", len(out))
	}
}
