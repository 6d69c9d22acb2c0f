package reforms

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ReformAtlas/RA-Backend/internal/db"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// reformTypeLink addresses the many-to-many join table directly; the merge
// needs row-level control the association API doesn't give.
type reformTypeLink struct {
	ReformID     uint `gorm:"primaryKey;autoIncrement:false"`
	ReformTypeID uint `gorm:"primaryKey;autoIncrement:false"`
}

func (reformTypeLink) TableName() string { return "atlas.reform_reform_types" }

type pairKey [2]uint

func makePairKey(a, b uint) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// candidatePairs implements the grouping-and-exclusion algorithm over an
// already-loaded reform set:
//  1. group by (place, non-null adoption date), keep groups of >=2;
//  2. drop groups whose members' policy documents carry more than one
//     distinct reference number (distinct instruments sharing a date);
//  3. enumerate unordered pairs, canonicalized (min id, max id), skipping
//     operator-distinguished pairs.
func candidatePairs(reformList []Reform, distinguished map[pairKey]struct{}) [][2]Reform {
	type groupKey struct {
		placeID uint
		date    string
	}
	groups := make(map[groupKey][]Reform)
	for _, r := range reformList {
		if r.AdoptionDate == nil {
			continue
		}
		k := groupKey{placeID: r.PlaceID, date: r.AdoptionDate.Format("2006-01-02")}
		groups[k] = append(groups[k], r)
	}

	var pairs [][2]Reform
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}

		refs := make(map[string]struct{})
		for _, m := range members {
			if m.PolicyDocument != nil && m.PolicyDocument.ReferenceNumber != "" {
				refs[m.PolicyDocument.ReferenceNumber] = struct{}{}
			}
		}
		if len(refs) > 1 {
			continue
		}

		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if _, skip := distinguished[makePairKey(members[i].ID, members[j].ID)]; skip {
					continue
				}
				pairs = append(pairs, [2]Reform{members[i], members[j]})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0].ID != pairs[j][0].ID {
			return pairs[i][0].ID < pairs[j][0].ID
		}
		return pairs[i][1].ID < pairs[j][1].ID
	})
	return pairs
}

type DuplicatePairOut struct {
	ReformID1    uint      `json:"reform_id_1"`
	ReformID2    uint      `json:"reform_id_2"`
	Place        string    `json:"place"`
	AdoptionDate string    `json:"adoption_date"`
	ReformA      ReformOut `json:"reform_a"`
	ReformB      ReformOut `json:"reform_b"`
}

// GetDuplicateCandidates returns suspected duplicate pairs for operator
// review. Runs over the full reform set, hidden included.
func GetDuplicateCandidates(w http.ResponseWriter, r *http.Request) {
	var reformList []Reform
	err := preloadReformDetail(db.DB.Model(&Reform{})).
		Where("reforms.adoption_date IS NOT NULL").
		Order("reforms.id").
		Find(&reformList).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch reforms", err)
		return
	}

	var dps []DistinguishedPair
	if err := db.DB.Find(&dps).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch distinguished pairs", err)
		return
	}
	distinguished := make(map[pairKey]struct{}, len(dps))
	for _, dp := range dps {
		distinguished[makePairKey(dp.ReformID1, dp.ReformID2)] = struct{}{}
	}

	pairs := candidatePairs(reformList, distinguished)
	out := make([]DuplicatePairOut, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, DuplicatePairOut{
			ReformID1:    p[0].ID,
			ReformID2:    p[1].ID,
			Place:        p[0].Place.Name,
			AdoptionDate: formatDate(p[0].AdoptionDate),
			ReformA:      toReformOut(p[0]),
			ReformB:      toReformOut(p[1]),
		})
	}

	writeJSON(w, map[string]any{
		"success": true,
		"pairs":   out,
		"count":   len(out),
	})
}

// mergeableFields is the allow-list of kept-record fields an operator may
// overwrite during a merge. Unknown keys are ignored.
var mergeableFields = map[string]struct{}{
	"status": {}, "adoption_date": {}, "scope": {}, "land_use": {},
	"requirements": {}, "intensity": {}, "summary": {}, "notes": {},
	"link_url": {}, "hidden": {}, "policy_document_id": {},
}

var errValidation = errors.New("validation")

func toStringSlice(v any) ([]string, error) {
	switch vals := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected string array", errValidation)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected string array", errValidation)
}

// applyMergeUpdates applies an allow-listed update map onto the kept record
// and extracts the optional explicit reform-type replacement set.
func applyMergeUpdates(r *Reform, updates map[string]any) (typeIDs []uint, replaceTypes bool, err error) {
	for key, value := range updates {
		if key == "reform_type_ids" {
			ids, convErr := toStringOrIDList(value)
			if convErr != nil {
				return nil, false, convErr
			}
			typeIDs, replaceTypes = ids, true
			continue
		}
		if _, ok := mergeableFields[key]; !ok {
			continue
		}

		switch key {
		case "status":
			s, ok := value.(string)
			if !ok {
				return nil, false, fmt.Errorf("%w: status must be a string", errValidation)
			}
			r.Status = s
		case "adoption_date":
			if value == nil {
				r.AdoptionDate = nil
				break
			}
			s, ok := value.(string)
			if !ok {
				return nil, false, fmt.Errorf("%w: adoption_date must be a string or null", errValidation)
			}
			t, parseErr := time.Parse("2006-01-02", s)
			if parseErr != nil {
				return nil, false, fmt.Errorf("%w: adoption_date must be YYYY-MM-DD", errValidation)
			}
			r.AdoptionDate = &t
		case "scope", "land_use", "requirements":
			tags, convErr := toStringSlice(value)
			if convErr != nil {
				return nil, false, convErr
			}
			switch key {
			case "scope":
				r.Scope = pq.StringArray(tags)
			case "land_use":
				r.LandUse = pq.StringArray(tags)
			case "requirements":
				r.Requirements = pq.StringArray(tags)
			}
		case "intensity":
			if value == nil {
				r.Intensity = nil
				break
			}
			s, ok := value.(string)
			if !ok || (s != IntensityComplete && s != IntensityPartial) {
				return nil, false, fmt.Errorf("%w: intensity must be complete, partial, or null", errValidation)
			}
			r.Intensity = &s
		case "summary":
			if s, ok := value.(string); ok {
				r.Summary = s
			}
		case "notes":
			if s, ok := value.(string); ok {
				r.Notes = s
			}
		case "link_url":
			if s, ok := value.(string); ok {
				r.LinkURL = s
			}
		case "hidden":
			b, ok := value.(bool)
			if !ok {
				return nil, false, fmt.Errorf("%w: hidden must be a boolean", errValidation)
			}
			r.Hidden = b
		case "policy_document_id":
			if value == nil {
				r.PolicyDocumentID = nil
				break
			}
			n, ok := value.(float64)
			if !ok || n < 1 {
				return nil, false, fmt.Errorf("%w: policy_document_id must be a positive integer or null", errValidation)
			}
			id := uint(n)
			r.PolicyDocumentID = &id
		}
	}
	return typeIDs, replaceTypes, nil
}

func toStringOrIDList(v any) ([]uint, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: reform_type_ids must be an integer array", errValidation)
	}
	ids := make([]uint, 0, len(raw))
	for _, item := range raw {
		n, ok := item.(float64)
		if !ok || n < 1 {
			return nil, fmt.Errorf("%w: reform_type_ids must be positive integers", errValidation)
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}

type MergeRequest struct {
	KeepReformID  uint           `json:"keep_reform_id"`
	MergeReformID uint           `json:"merge_reform_id"`
	Updates       map[string]any `json:"updates"`
}

// MergeReforms combines the merge record into the kept record inside one
// transaction. Both rows are locked FOR UPDATE in id order so concurrent
// merges over overlapping reforms serialize instead of interleaving.
func MergeReforms(req MergeRequest) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		ids := []uint{req.KeepReformID, req.MergeReformID}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		var locked []Reform
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).Order("id").Find(&locked).Error; err != nil {
			return err
		}
		byID := make(map[uint]Reform, len(locked))
		for _, row := range locked {
			byID[row.ID] = row
		}
		keep, ok := byID[req.KeepReformID]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		if _, ok := byID[req.MergeReformID]; !ok {
			return gorm.ErrRecordNotFound
		}

		typeIDs, replaceTypes, err := applyMergeUpdates(&keep, req.Updates)
		if err != nil {
			return err
		}
		// Save (not Updates) so the BeforeSave hook recomputes impact_score.
		if err := tx.Omit(clause.Associations).Save(&keep).Error; err != nil {
			return err
		}

		if replaceTypes {
			var count int64
			if err := tx.Model(&ReformType{}).Where("id IN ?", typeIDs).Count(&count).Error; err != nil {
				return err
			}
			if int(count) != len(typeIDs) {
				return fmt.Errorf("%w: unknown reform_type_ids", errValidation)
			}
			if err := tx.Where("reform_id = ?", keep.ID).Delete(&reformTypeLink{}).Error; err != nil {
				return err
			}
			for _, id := range typeIDs {
				if err := tx.Create(&reformTypeLink{ReformID: keep.ID, ReformTypeID: id}).Error; err != nil {
					return err
				}
			}
		} else {
			var mergeLinks []reformTypeLink
			if err := tx.Where("reform_id = ?", req.MergeReformID).Find(&mergeLinks).Error; err != nil {
				return err
			}
			for _, link := range mergeLinks {
				link.ReformID = keep.ID
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
					return err
				}
			}
		}

		// Source links: copy, skipping (reform, source) pairs that exist.
		var mergeSources []ReformSource
		if err := tx.Where("reform_id = ?", req.MergeReformID).Find(&mergeSources).Error; err != nil {
			return err
		}
		for _, link := range mergeSources {
			link.ReformID = keep.ID
			if err := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return err
			}
		}

		// Citations: copy, de-duplicating by (url, description).
		var keepCitations, mergeCitations []Citation
		if err := tx.Where("reform_id = ?", keep.ID).Find(&keepCitations).Error; err != nil {
			return err
		}
		if err := tx.Where("reform_id = ?", req.MergeReformID).Find(&mergeCitations).Error; err != nil {
			return err
		}
		seen := make(map[[2]string]struct{}, len(keepCitations))
		for _, c := range keepCitations {
			seen[[2]string{c.URL, c.Description}] = struct{}{}
		}
		for _, c := range mergeCitations {
			key := [2]string{c.URL, c.Description}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			copied := Citation{
				ReformID:    keep.ID,
				Description: c.Description,
				URL:         c.URL,
				Notes:       c.Notes,
			}
			if err := tx.Create(&copied).Error; err != nil {
				return err
			}
		}

		// Remove the merge record and everything hanging off it.
		if err := tx.Where("reform_id = ?", req.MergeReformID).Delete(&reformTypeLink{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reform_id = ?", req.MergeReformID).Delete(&ReformSource{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reform_id = ?", req.MergeReformID).Delete(&Citation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("reform_id_1 = ? OR reform_id_2 = ?",
			req.MergeReformID, req.MergeReformID).Delete(&DistinguishedPair{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Reform{}, req.MergeReformID).Error
	})
}

// MergeHandler validates the merge request and runs the transaction.
func MergeHandler(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.KeepReformID == 0 || req.MergeReformID == 0 {
		writeError(w, http.StatusBadRequest, "keep_reform_id and merge_reform_id are required", nil)
		return
	}
	if req.KeepReformID == req.MergeReformID {
		writeError(w, http.StatusConflict, "Cannot merge a reform into itself", nil)
		return
	}

	if err := MergeReforms(req); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			writeError(w, http.StatusNotFound, "Reform not found", err)
		case errors.Is(err, errValidation):
			writeError(w, http.StatusBadRequest, "Invalid merge updates", err)
		default:
			writeError(w, http.StatusInternalServerError, "Merge failed", err)
		}
		return
	}

	writeJSON(w, map[string]any{"success": true})
}

// DistinguishHandler records an operator's confirmation that two reforms are
// not duplicates, silencing the pair in future detection runs.
func DistinguishHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReformID1 uint `json:"reform_id_1"`
		ReformID2 uint `json:"reform_id_2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id1, id2, err := CanonicalPairIDs(req.ReformID1, req.ReformID2)
	if err != nil || id1 == 0 {
		writeError(w, http.StatusBadRequest, "Two distinct reform ids are required", err)
		return
	}

	var count int64
	if err := db.DB.Model(&Reform{}).Where("id IN ?", []uint{id1, id2}).Count(&count).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify reforms", err)
		return
	}
	if count != 2 {
		writeError(w, http.StatusNotFound, "Reform not found", nil)
		return
	}

	pair := DistinguishedPair{ReformID1: id1, ReformID2: id2}
	if err := db.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&pair).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record pair", err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true})
}
