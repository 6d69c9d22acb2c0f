package reforms

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ReformAtlas/RA-Backend/internal/db"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// SubmissionRequest is a public reform submission. The created reform stays
// hidden until an operator approves it; rejection stamps rejected_at so the
// row stays hidden but leaves the pending queue.
type SubmissionRequest struct {
	PlaceName       string   `json:"place_name"`
	State           string   `json:"state"`
	PlaceType       string   `json:"place_type"`
	ReformTypeCodes []string `json:"reform_type_codes"`
	Status          string   `json:"status"`
	AdoptionDate    string   `json:"adoption_date,omitempty"`
	Scope           []string `json:"scope,omitempty"`
	LandUse         []string `json:"land_use,omitempty"`
	Requirements    []string `json:"requirements,omitempty"`
	Intensity       *string  `json:"intensity,omitempty"`
	LinkURL         string   `json:"link_url,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

func CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req.PlaceName = strings.TrimSpace(req.PlaceName)
	if req.PlaceName == "" || len(req.ReformTypeCodes) == 0 {
		writeError(w, http.StatusBadRequest, "place_name and reform_type_codes are required", nil)
		return
	}
	stateCode, ok := NormalizeDivision(req.State)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown state or province", nil)
		return
	}
	placeType := strings.ToLower(strings.TrimSpace(req.PlaceType))
	if _, ok := validPlaceTypes[placeType]; !ok {
		placeType = PlaceTypeCity
	}
	if req.Intensity != nil && *req.Intensity != IntensityComplete && *req.Intensity != IntensityPartial {
		writeError(w, http.StatusBadRequest, "intensity must be complete or partial", nil)
		return
	}

	var types []ReformType
	if err := db.DB.Where("code IN ?", req.ReformTypeCodes).Find(&types).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve reform types", err)
		return
	}
	if len(types) == 0 {
		writeError(w, http.StatusBadRequest, "No recognized reform_type_codes", nil)
		return
	}

	var adoptionDate *time.Time
	if req.AdoptionDate != "" {
		t, err := time.Parse("2006-01-02", req.AdoptionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "adoption_date must be YYYY-MM-DD", err)
			return
		}
		adoptionDate = &t
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var place Place
		err := tx.Where("state_code = ? AND lower(name) = ? AND place_type = ?",
			stateCode, strings.ToLower(req.PlaceName), placeType).First(&place).Error
		if err == gorm.ErrRecordNotFound {
			place = Place{Name: req.PlaceName, PlaceType: placeType, StateCode: stateCode}
			if err := tx.Create(&place).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		reform := Reform{
			PlaceID:      place.ID,
			ReformTypes:  types,
			Status:       NormalizeStatus(req.Status),
			AdoptionDate: adoptionDate,
			Scope:        pq.StringArray(req.Scope),
			LandUse:      pq.StringArray(req.LandUse),
			Requirements: pq.StringArray(req.Requirements),
			Intensity:    req.Intensity,
			LinkURL:      req.LinkURL,
			Summary:      req.Summary,
			Hidden:       true, // pending review
		}
		return tx.Create(&reform).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create submission", err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true})
}

func submissionByID(w http.ResponseWriter, r *http.Request) (*Reform, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reform id", err)
		return nil, false
	}
	var reform Reform
	if err := db.DB.First(&reform, "id = ?", uint(id)).Error; err != nil {
		writeError(w, http.StatusNotFound, "Reform not found", err)
		return nil, false
	}
	return &reform, true
}

// ListPendingSubmissions shows hidden reforms awaiting operator review.
// Rejected rows stay hidden but are no longer pending.
func ListPendingSubmissions(w http.ResponseWriter, r *http.Request) {
	var rows []Reform
	err := preloadReformDetail(db.DB.Model(&Reform{}).
		Joins("JOIN atlas.places AS places ON places.id = reforms.place_id")).
		Where("reforms.hidden = ? AND reforms.rejected_at IS NULL", true).
		Order("reforms.id").
		Find(&rows).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch submissions", err)
		return
	}

	out := make([]ReformOut, 0, len(rows))
	for _, row := range rows {
		out = append(out, toReformOut(row))
	}
	writeJSON(w, map[string]any{"success": true, "reforms": out, "count": len(out)})
}

// ApproveSubmission unhides a pending reform, admitting it to all
// projections.
func ApproveSubmission(w http.ResponseWriter, r *http.Request) {
	reform, ok := submissionByID(w, r)
	if !ok {
		return
	}
	if !reform.Hidden {
		writeError(w, http.StatusConflict, "Reform is already visible", nil)
		return
	}

	reform.Hidden = false
	// Approval reverses an earlier rejection.
	reform.RejectedAt = nil
	if err := db.DB.Omit("ReformTypes", "Sources", "Citations", "Place", "PolicyDocument").
		Save(reform).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to approve submission", err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

// RejectSubmission stamps the reform rejected. The row stays hidden (and
// excluded from every projection) but drops out of the pending queue.
func RejectSubmission(w http.ResponseWriter, r *http.Request) {
	reform, ok := submissionByID(w, r)
	if !ok {
		return
	}
	if !reform.Hidden {
		writeError(w, http.StatusConflict, "Reform is already visible", nil)
		return
	}

	now := time.Now()
	reform.RejectedAt = &now
	if err := db.DB.Omit("ReformTypes", "Sources", "Citations", "Place", "PolicyDocument").
		Save(reform).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reject submission", err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}
