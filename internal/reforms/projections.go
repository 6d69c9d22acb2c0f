package reforms

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ReformAtlas/RA-Backend/internal/db"
	"gorm.io/gorm"
)

// baseReformQuery joins reforms to places and renders the predicate set.
// All three projections start here so filter semantics cannot diverge.
func baseReformQuery(ps PredicateSet) *gorm.DB {
	q := db.DB.Model(&Reform{}).
		Joins("JOIN atlas.places AS places ON places.id = reforms.place_id")
	return ps.Apply(q)
}

type SourceOut struct {
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Reporter  string `json:"reporter,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

type CitationOut struct {
	Description string `json:"description"`
	URL         string `json:"url"`
	Notes       string `json:"notes,omitempty"`
}

type ReformTypeOut struct {
	ID       uint   `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Color    string `json:"color,omitempty"`
}

type ReformOut struct {
	ID            uint            `json:"id"`
	Place         string          `json:"place"`
	PlaceType     string          `json:"place_type"`
	StateCode     string          `json:"state_code"`
	StateName     string          `json:"state_name,omitempty"`
	Population    *int64          `json:"population,omitempty"`
	ReformTypes   []ReformTypeOut `json:"reform_types"`
	Status        string          `json:"status"`
	AdoptionDate  string          `json:"adoption_date,omitempty"`
	Scope         []string        `json:"scope,omitempty"`
	LandUse       []string        `json:"land_use,omitempty"`
	Requirements  []string        `json:"requirements,omitempty"`
	Intensity     *string         `json:"intensity,omitempty"`
	ImpactScore   float64         `json:"impact_score"`
	PolicyDocRef  string          `json:"policy_document_ref,omitempty"`
	PolicyDocName string          `json:"policy_document_title,omitempty"`
	LinkURL       string          `json:"link_url,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Sources       []SourceOut     `json:"sources"`
	Citations     []CitationOut   `json:"citations"`
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// toReformOut flattens a preloaded reform into the detail payload, applying
// the canonical nested orderings: reform types by sort order then id,
// sources primary-first then source name, citations by insertion order.
func toReformOut(r Reform) ReformOut {
	out := ReformOut{
		ID:           r.ID,
		Place:        r.Place.Name,
		PlaceType:    r.Place.PlaceType,
		StateCode:    r.Place.StateCode,
		Population:   r.Place.Population,
		Status:       r.Status,
		AdoptionDate: formatDate(r.AdoptionDate),
		Scope:        r.Scope,
		LandUse:      r.LandUse,
		Requirements: r.Requirements,
		Intensity:    r.Intensity,
		ImpactScore:  r.ImpactScore,
		LinkURL:      r.LinkURL,
		Summary:      r.Summary,
		Notes:        r.Notes,
		Sources:      []SourceOut{},
		Citations:    []CitationOut{},
	}

	if name, ok := DivisionName(r.Place.StateCode); ok {
		out.StateName = name
	}
	if r.PolicyDocument != nil {
		out.PolicyDocRef = r.PolicyDocument.ReferenceNumber
		out.PolicyDocName = r.PolicyDocument.Title
	}

	types := append([]ReformType(nil), r.ReformTypes...)
	sort.SliceStable(types, func(i, j int) bool {
		if types[i].SortOrder != types[j].SortOrder {
			return types[i].SortOrder < types[j].SortOrder
		}
		return types[i].ID < types[j].ID
	})
	out.ReformTypes = make([]ReformTypeOut, 0, len(types))
	for _, t := range types {
		to := ReformTypeOut{ID: t.ID, Code: t.Code, Name: t.Name, Color: t.Color}
		if t.Category != nil {
			to.Category = t.Category.Name
		}
		out.ReformTypes = append(out.ReformTypes, to)
	}

	links := append([]ReformSource(nil), r.Sources...)
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].IsPrimary != links[j].IsPrimary {
			return links[i].IsPrimary
		}
		return links[i].Source.Name < links[j].Source.Name
	})
	for _, l := range links {
		out.Sources = append(out.Sources, SourceOut{
			Name:      l.Source.Name,
			ShortName: l.Source.ShortName,
			Reporter:  l.Reporter,
			SourceURL: l.SourceURL,
			IsPrimary: l.IsPrimary,
		})
	}

	cits := append([]Citation(nil), r.Citations...)
	sort.SliceStable(cits, func(i, j int) bool { return cits[i].ID < cits[j].ID })
	for _, c := range cits {
		out.Citations = append(out.Citations, CitationOut{
			Description: c.Description,
			URL:         c.URL,
			Notes:       c.Notes,
		})
	}

	return out
}

func preloadReformDetail(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Place").
		Preload("ReformTypes").
		Preload("ReformTypes.Category").
		Preload("PolicyDocument").
		Preload("Sources").
		Preload("Sources.Source").
		Preload("Citations")
}

// GetReforms is the detail projection: full records with joined source,
// citation, type and place metadata.
func GetReforms(w http.ResponseWriter, r *http.Request) {
	spec := ParseFilterSpec(r.URL.Query())
	ps := Compile(spec)

	var rows []Reform
	q := preloadReformDetail(baseReformQuery(ps)).Order("reforms.id")
	if err := q.Find(&rows).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch reforms", err)
		return
	}

	out := make([]ReformOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, toReformOut(row))
	}

	writeJSON(w, map[string]any{
		"success": true,
		"reforms": out,
		"count":   len(out),
	})
}

type MapTypeOut struct {
	Code  string `json:"code"`
	Color string `json:"color,omitempty"`
}

type MapReformOut struct {
	ID          uint         `json:"id"`
	Place       string       `json:"place"`
	StateCode   string       `json:"state_code"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	ReformTypes []MapTypeOut `json:"reform_types"`
}

// GetReformsMap is the map projection: minimal geographic records plus an
// unfiltered-by-limit total_count for progressive loading. The page query
// and the count query are separate statements; they may observe different
// snapshots under concurrent writes, which callers tolerate.
func GetReformsMap(w http.ResponseWriter, r *http.Request) {
	spec := ParseFilterSpec(r.URL.Query())
	ps := Compile(spec)

	var total int64
	if err := baseReformQuery(ps).Count(&total).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count reforms", err)
		return
	}

	q := baseReformQuery(ps).
		Preload("Place").
		Preload("ReformTypes").
		Order("reforms.id")
	if pageLimit, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && pageLimit > 0 {
		q = q.Limit(pageLimit)
	}

	var rows []Reform
	if err := q.Find(&rows).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch reforms", err)
		return
	}

	out := make([]MapReformOut, 0, len(rows))
	for _, row := range rows {
		m := MapReformOut{
			ID:          row.ID,
			Place:       row.Place.Name,
			StateCode:   row.Place.StateCode,
			Latitude:    row.Place.Latitude,
			Longitude:   row.Place.Longitude,
			ReformTypes: make([]MapTypeOut, 0, len(row.ReformTypes)),
		}
		types := append([]ReformType(nil), row.ReformTypes...)
		sort.SliceStable(types, func(i, j int) bool {
			if types[i].SortOrder != types[j].SortOrder {
				return types[i].SortOrder < types[j].SortOrder
			}
			return types[i].ID < types[j].ID
		})
		for _, t := range types {
			m.ReformTypes = append(m.ReformTypes, MapTypeOut{Code: t.Code, Color: t.Color})
		}
		out = append(out, m)
	}

	writeJSON(w, map[string]any{
		"success":     true,
		"reforms":     out,
		"count":       len(out),
		"total_count": total,
	})
}
