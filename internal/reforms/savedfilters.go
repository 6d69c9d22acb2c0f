package reforms

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ReformAtlas/RA-Backend/internal/db"
	"github.com/ReformAtlas/RA-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
)

// CurrentFilterVersion is the schema version new saved filters are written
// at. Bump it together with a new entry in filterMigrations.
const CurrentFilterVersion = 3

// SavedFilter persists a filter specification with its schema version.
// Reads lazily upgrade stale configs and persist the upgrade.
type SavedFilter struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	FilterConfig  JSONB     `gorm:"type:jsonb;not null;default:'{}'" json:"filter_config"`
	FilterVersion int       `gorm:"not null" json:"filter_version"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (SavedFilter) TableName() string { return "atlas.saved_filters" }

// filterMigrations maps version v to the pure upgrade v -> v+1. Applied as a
// chain from the stored version up to CurrentFilterVersion.
var filterMigrations = map[int]func(map[string]any) map[string]any{
	// v1 -> v2: year keys renamed to match the wire encoding.
	1: func(cfg map[string]any) map[string]any {
		if v, ok := cfg["year_from"]; ok {
			cfg["from_year"] = v
			delete(cfg, "year_from")
		}
		if v, ok := cfg["year_to"]; ok {
			cfg["to_year"] = v
			delete(cfg, "year_to")
		}
		return cfg
	},
	// v2 -> v3: retired short reform-type codes became namespaced. Old codes
	// in stored filters are rewritten so they keep matching.
	2: func(cfg map[string]any) map[string]any {
		renames := map[string]string{
			"adu":     "housing:adu",
			"parking": "parking:maximums",
			"tnd":     "zoning:traditional-neighborhood",
		}
		raw, ok := cfg["reform_type"]
		if !ok {
			return cfg
		}
		rewrite := func(s string) string {
			if renamed, hit := renames[s]; hit {
				return renamed
			}
			return s
		}
		switch v := raw.(type) {
		case string:
			cfg["reform_type"] = rewrite(v)
		case []any:
			out := make([]any, 0, len(v))
			for _, item := range v {
				if s, isStr := item.(string); isStr {
					out = append(out, rewrite(s))
				} else {
					out = append(out, item)
				}
			}
			cfg["reform_type"] = out
		}
		return cfg
	},
}

// UpgradeFilterConfig applies the migration chain from the stored version to
// the current one. Unknown future versions pass through untouched.
func UpgradeFilterConfig(cfg map[string]any, from int) (map[string]any, int) {
	version := from
	for version < CurrentFilterVersion {
		migrate, ok := filterMigrations[version]
		if !ok {
			break
		}
		cfg = migrate(cfg)
		version++
	}
	return cfg, version
}

// loadSavedFilter fetches a saved filter, upgrading and persisting a stale
// config before returning it.
func loadSavedFilter(id uint) (*SavedFilter, error) {
	var sf SavedFilter
	if err := db.DB.First(&sf, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if sf.FilterVersion >= CurrentFilterVersion {
		return &sf, nil
	}

	var cfg map[string]any
	if err := json.Unmarshal(sf.FilterConfig, &cfg); err != nil {
		return nil, err
	}
	upgraded, version := UpgradeFilterConfig(cfg, sf.FilterVersion)
	if version == sf.FilterVersion {
		// Version sits below the chain's first migration; nothing changed,
		// so there is nothing worth persisting.
		return &sf, nil
	}
	raw, err := json.Marshal(upgraded)
	if err != nil {
		return nil, err
	}
	sf.FilterConfig = JSONB(raw)
	sf.FilterVersion = version

	if err := db.DB.Model(&sf).Updates(map[string]any{
		"filter_config":  sf.FilterConfig,
		"filter_version": sf.FilterVersion,
	}).Error; err != nil {
		return nil, err
	}
	return &sf, nil
}

func ListSavedFilters(w http.ResponseWriter, r *http.Request) {
	var filters []SavedFilter
	if err := db.DB.Order("id").Find(&filters).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch saved filters", err)
		return
	}
	writeJSON(w, map[string]any{
		"success": true,
		"filters": filters,
		"count":   len(filters),
	})
}

func GetSavedFilter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid saved filter id", err)
		return
	}

	sf, err := loadSavedFilter(uint(id))
	if err != nil {
		writeError(w, http.StatusNotFound, "Saved filter not found", err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "filter": sf})
}

func CreateSavedFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string         `json:"name"`
		FilterConfig map[string]any `json:"filter_config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.FilterConfig == nil {
		req.FilterConfig = map[string]any{}
	}

	raw, err := json.Marshal(req.FilterConfig)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter_config", err)
		return
	}

	userID, _ := utils.GetUserIDFromContext(r.Context())
	sf := SavedFilter{
		Name:          req.Name,
		FilterConfig:  JSONB(raw),
		FilterVersion: CurrentFilterVersion,
		CreatedBy:     userID,
	}
	if err := db.DB.Create(&sf).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create saved filter", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"success": true, "filter": sf})
}
