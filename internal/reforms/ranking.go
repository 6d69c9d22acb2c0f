package reforms

import (
	"net/http"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// moverRow is one (reform, type, category) tuple from the filtered join.
type moverRow struct {
	PlaceID      uint
	PlaceName    string
	StateCode    string
	TypeCode     string
	CategoryName string
}

type MoverOut struct {
	PlaceID         uint     `json:"place_id"`
	Name            string   `json:"name"`
	StateCode       string   `json:"state_code"`
	ReformTypeCount int      `json:"reform_type_count"`
	CategoryCount   int      `json:"category_count"`
	Categories      []string `json:"categories"`
}

// RankMovers aggregates filtered reform rows into the ranked jurisdiction
// summary. Ranking by (type count desc, category count desc, name asc)
// decides membership in the top-N set; the returned slice is then re-sorted
// alphabetically because display order is deliberately not rank order.
//
// categoryRestriction, when non-empty, limits counted categories to those
// reachable from the filtered reform-type codes.
func RankMovers(rows []moverRow, categoryRestriction []string, limit int) []MoverOut {
	// Collators keep mutable iterator state between comparisons, so each call
	// gets its own; a shared one races across concurrent requests.
	nameCollator := collate.New(language.English, collate.Loose)

	if limit <= 0 {
		limit = DefaultMoversLimit
	}
	if limit > MaxMoversLimit {
		limit = MaxMoversLimit
	}

	restricted := make(map[string]struct{}, len(categoryRestriction))
	for _, code := range categoryRestriction {
		restricted[code] = struct{}{}
	}

	type agg struct {
		out        MoverOut
		types      map[string]struct{}
		categories map[string]struct{}
	}
	places := make(map[uint]*agg)

	for _, row := range rows {
		a, ok := places[row.PlaceID]
		if !ok {
			a = &agg{
				out: MoverOut{
					PlaceID:   row.PlaceID,
					Name:      row.PlaceName,
					StateCode: row.StateCode,
				},
				types:      make(map[string]struct{}),
				categories: make(map[string]struct{}),
			}
			places[row.PlaceID] = a
		}
		a.types[row.TypeCode] = struct{}{}

		if row.CategoryName == "" {
			continue
		}
		if len(restricted) > 0 {
			if _, ok := restricted[row.TypeCode]; !ok {
				continue
			}
		}
		a.categories[row.CategoryName] = struct{}{}
	}

	ranked := make([]MoverOut, 0, len(places))
	for _, a := range places {
		if len(a.types) == 0 {
			continue
		}
		a.out.ReformTypeCount = len(a.types)
		a.out.CategoryCount = len(a.categories)
		a.out.Categories = make([]string, 0, len(a.categories))
		for name := range a.categories {
			a.out.Categories = append(a.out.Categories, name)
		}
		sort.Slice(a.out.Categories, func(i, j int) bool {
			return nameCollator.CompareString(a.out.Categories[i], a.out.Categories[j]) < 0
		})
		ranked = append(ranked, a.out)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ReformTypeCount != ranked[j].ReformTypeCount {
			return ranked[i].ReformTypeCount > ranked[j].ReformTypeCount
		}
		if ranked[i].CategoryCount != ranked[j].CategoryCount {
			return ranked[i].CategoryCount > ranked[j].CategoryCount
		}
		return nameCollator.CompareString(ranked[i].Name, ranked[j].Name) < 0
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	sort.Slice(ranked, func(i, j int) bool {
		return nameCollator.CompareString(ranked[i].Name, ranked[j].Name) < 0
	})

	return ranked
}

// GetMovers is the ranking projection: jurisdictions by breadth of adopted
// reform diversity.
func GetMovers(w http.ResponseWriter, r *http.Request) {
	spec := ParseFilterSpec(r.URL.Query())
	ps := Compile(spec)

	var rows []moverRow
	err := baseReformQuery(ps).
		Select(`places.id AS place_id, places.name AS place_name, places.state_code AS state_code,
			rt.code AS type_code, COALESCE(cat.name, '') AS category_name`).
		Joins("JOIN atlas.reform_reform_types rrt ON rrt.reform_id = reforms.id").
		Joins("JOIN atlas.reform_types rt ON rt.id = rrt.reform_type_id").
		Joins("LEFT JOIN atlas.categories cat ON cat.id = rt.category_id").
		Scan(&rows).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch movers", err)
		return
	}

	movers := RankMovers(rows, ps.CategoryRestriction, spec.Limit)

	writeJSON(w, map[string]any{
		"success": true,
		"places":  movers,
		"count":   len(movers),
	})
}
