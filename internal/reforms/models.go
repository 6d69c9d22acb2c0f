package reforms

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// JSONB wraps json.RawMessage with Scanner/Valuer for GORM JSONB columns.
type JSONB json.RawMessage

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "{}", nil
	}
	return string(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("unsupported type: %T", value)
	}
	return nil
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return json.RawMessage(j).MarshalJSON()
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSONB: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// Place types. "state" covers provinces and territories too.
const (
	PlaceTypeCity   = "city"
	PlaceTypeCounty = "county"
	PlaceTypeState  = "state"
)

// TopLevelDivision is one US state/territory or Canadian province; places
// reference it by code.
type TopLevelDivision struct {
	Code     string `gorm:"primaryKey;size:2" json:"code"`
	Name     string `gorm:"not null" json:"name"`
	Country  string `gorm:"not null" json:"country"`
	Region   string `gorm:"index" json:"region"`
	Boundary JSONB  `gorm:"type:jsonb;default:'{}'" json:"boundary,omitempty"`
}

type Place struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	Name          string   `gorm:"not null;index:idx_place_identity,unique,priority:2" json:"name"`
	PlaceType     string   `gorm:"not null;index:idx_place_identity,unique,priority:3" json:"place_type"`
	StateCode     string   `gorm:"size:2;not null;index:idx_place_identity,unique,priority:1" json:"state_code"`
	Population    *int64   `json:"population,omitempty"`
	PopulationLog *float64 `json:"population_log,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	EncodedName   string   `json:"encoded_name,omitempty"`

	Division *TopLevelDivision `gorm:"foreignKey:StateCode;references:Code" json:"division,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave keeps population_log in lockstep with population on every write
// path, including bulk updates through the ORM.
func (p *Place) BeforeSave(tx *gorm.DB) error {
	if p.Population == nil {
		p.PopulationLog = nil
		return nil
	}
	lg := PopulationLog(*p.Population)
	p.PopulationLog = &lg
	return nil
}

// Category groups reform types; the movers ranking counts distinct categories
// as its "domains" dimension.
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// ReformType codes are namespaced ("housing:adu"). Retired codes are never
// rewritten in place; renames ride the saved-filter migration chain so
// historical records keep resolving.
type ReformType struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"uniqueIndex;not null" json:"code"`
	Name       string    `gorm:"not null" json:"name"`
	CategoryID *uint     `json:"category_id,omitempty"`
	Category   *Category `json:"category,omitempty"`
	Color      string    `json:"color"`
	SortOrder  int       `gorm:"default:0" json:"sort_order"`
}

type Source struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	ShortName string `gorm:"uniqueIndex;not null" json:"short_name"`
}

// ReformSource links a reform to a data source with provenance detail.
type ReformSource struct {
	ReformID  uint   `gorm:"primaryKey" json:"reform_id"`
	SourceID  uint   `gorm:"primaryKey" json:"source_id"`
	Source    Source `json:"source"`
	Reporter  string `json:"reporter,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	Notes     string `json:"notes,omitempty"`
	IsPrimary bool   `gorm:"default:true" json:"is_primary"`
}

type Citation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReformID    uint      `gorm:"not null;index" json:"reform_id"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PolicyDocument is the legislative instrument behind one or more reforms.
// Its reference number is what tells genuinely distinct same-day instruments
// apart during duplicate detection.
type PolicyDocument struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ReferenceNumber string     `gorm:"not null;index:idx_policy_doc_ref,unique,priority:2" json:"reference_number"`
	StateCode       string     `gorm:"size:2;index:idx_policy_doc_ref,unique,priority:1" json:"state_code"`
	PlaceID         *uint      `json:"place_id,omitempty"`
	Title           string     `json:"title"`
	DocumentURL     string     `json:"document_url,omitempty"`
	Status          string     `json:"status,omitempty"`
	LastActionDate  *time.Time `gorm:"type:date" json:"last_action_date,omitempty"`
}

type Reform struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	PlaceID uint  `gorm:"not null;index" json:"place_id"`
	Place   Place `json:"place"`

	ReformTypes []ReformType `gorm:"many2many:atlas.reform_reform_types;" json:"reform_types"`

	// Free-form but always stored lowercase; a NULL adoption date means
	// "unknown", not "none".
	Status       string     `json:"status"`
	AdoptionDate *time.Time `gorm:"type:date;index" json:"adoption_date,omitempty"`

	Scope        pq.StringArray `gorm:"type:text[]" json:"scope,omitempty"`
	LandUse      pq.StringArray `gorm:"type:text[]" json:"land_use,omitempty"`
	Requirements pq.StringArray `gorm:"type:text[]" json:"requirements,omitempty"`
	Intensity    *string        `json:"intensity,omitempty"`

	ImpactScore float64 `json:"impact_score"`
	Hidden      bool    `gorm:"default:false;index" json:"-"`

	// Set when an operator rejects a submission; keeps the row hidden while
	// removing it from the pending triage queue.
	RejectedAt *time.Time `json:"-"`

	PolicyDocumentID *uint           `json:"policy_document_id,omitempty"`
	PolicyDocument   *PolicyDocument `json:"policy_document,omitempty"`

	LinkURL string `json:"link_url,omitempty"`
	Summary string `json:"summary,omitempty"`
	Notes   string `json:"notes,omitempty"`

	Sources   []ReformSource `json:"sources"`
	Citations []Citation     `json:"citations"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave normalizes status casing and recomputes the persisted impact
// score from the limitation fields. Runs on create and update so the stored
// score can never drift from the formula.
func (r *Reform) BeforeSave(tx *gorm.DB) error {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.ImpactScore = ComputeImpactScore(r.Scope, r.LandUse, r.Requirements, r.Intensity)
	return nil
}

// DistinguishedPair records two reforms an operator confirmed are not
// duplicates. Rows are canonical: reform_id_1 < reform_id_2 always.
type DistinguishedPair struct {
	ReformID1 uint      `gorm:"primaryKey;autoIncrement:false" json:"reform_id_1"`
	ReformID2 uint      `gorm:"primaryKey;autoIncrement:false" json:"reform_id_2"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CanonicalPairIDs orders a pair as (min, max); equal ids are invalid.
func CanonicalPairIDs(a, b uint) (uint, uint, error) {
	if a == b {
		return 0, 0, errors.New("a reform cannot be distinguished from itself")
	}
	if a > b {
		a, b = b, a
	}
	return a, b, nil
}

func (d *DistinguishedPair) BeforeSave(tx *gorm.DB) error {
	id1, id2, err := CanonicalPairIDs(d.ReformID1, d.ReformID2)
	if err != nil {
		return err
	}
	d.ReformID1, d.ReformID2 = id1, id2
	return nil
}

func (TopLevelDivision) TableName() string { return "atlas.divisions" }
func (Place) TableName() string            { return "atlas.places" }
func (Category) TableName() string         { return "atlas.categories" }
func (ReformType) TableName() string       { return "atlas.reform_types" }
func (Source) TableName() string           { return "atlas.sources" }
func (ReformSource) TableName() string     { return "atlas.reform_sources" }
func (Citation) TableName() string         { return "atlas.reform_citations" }
func (PolicyDocument) TableName() string   { return "atlas.policy_documents" }
func (Reform) TableName() string           { return "atlas.reforms" }
func (DistinguishedPair) TableName() string {
	return "atlas.distinguished_pairs"
}
