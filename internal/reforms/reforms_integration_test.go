package reforms_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ReformAtlas/RA-Backend/internal/db"
	"github.com/ReformAtlas/RA-Backend/internal/reforms"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

var dbAvailable bool

var testServer *httptest.Server

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		// No database available, skip all integration tests gracefully.
		os.Exit(m.Run())
	}

	db.Connect()
	dbAvailable = true

	reforms.Init()

	r := chi.NewRouter()
	r.Mount("/reforms", reforms.SetupRoutes())

	testServer = httptest.NewServer(r)
	defer testServer.Close()

	os.Exit(m.Run())
}

// fixture holds the seeded rows one integration test works against.
type fixture struct {
	place      reforms.Place
	reformType reforms.ReformType
	reform     reforms.Reform
}

// seedReform inserts a place, a reform type, and one adopted reform, with
// cleanup registered in reverse order.
func seedReform(t *testing.T) fixture {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	suffix := uuid.New().String()[:8]
	place := reforms.Place{
		Name:      fmt.Sprintf("Testville %s", suffix),
		PlaceType: reforms.PlaceTypeCity,
		StateCode: "CA",
	}
	if err := db.DB.Create(&place).Error; err != nil {
		t.Fatalf("failed to create place: %v", err)
	}

	rt := reforms.ReformType{
		Code: fmt.Sprintf("testing:%s", suffix),
		Name: "Test Reform Type",
	}
	if err := db.DB.Create(&rt).Error; err != nil {
		t.Fatalf("failed to create reform type: %v", err)
	}

	adopted := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	intensity := reforms.IntensityComplete
	reform := reforms.Reform{
		PlaceID:      place.ID,
		ReformTypes:  []reforms.ReformType{rt},
		Status:       reforms.StatusAdopted,
		AdoptionDate: &adopted,
		Scope:        pq.StringArray{reforms.UniversalScopeTag},
		LandUse:      pq.StringArray{reforms.UniversalLandUseTag},
		Requirements: pq.StringArray{reforms.UniversalRequirementsTag},
		Intensity:    &intensity,
	}
	if err := db.DB.Create(&reform).Error; err != nil {
		t.Fatalf("failed to create reform: %v", err)
	}

	t.Cleanup(func() {
		db.DB.Exec("DELETE FROM atlas.reform_reform_types WHERE reform_type_id = ?", rt.ID)
		db.DB.Where("place_id = ?", place.ID).Delete(&reforms.Reform{})
		db.DB.Delete(&reforms.ReformType{}, rt.ID)
		db.DB.Delete(&reforms.Place{}, place.ID)
	})

	return fixture{place: place, reformType: rt, reform: reform}
}

func getJSON(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(testServer.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode
}

// TestGetReforms_FilterRoundTrip verifies a seeded reform is found through
// its own filter dimensions and carries the computed impact score.
func TestGetReforms_FilterRoundTrip(t *testing.T) {
	fx := seedReform(t)

	var body struct {
		Success bool                `json:"success"`
		Reforms []reforms.ReformOut `json:"reforms"`
		Count   int                 `json:"count"`
	}
	path := fmt.Sprintf("/reforms/?reform_type=%s&state=CA&status=adopted&from_year=2023&to_year=2023",
		fx.reformType.Code)
	if code := getJSON(t, path, &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body.Success || body.Count != 1 {
		t.Fatalf("expected exactly the seeded reform, got count=%d", body.Count)
	}

	got := body.Reforms[0]
	if got.ID != fx.reform.ID {
		t.Errorf("expected reform %d, got %d", fx.reform.ID, got.ID)
	}
	if got.Place != fx.place.Name || got.StateCode != "CA" {
		t.Errorf("unexpected place payload: %+v", got)
	}
	// All-universal tags with complete intensity score a full 1.0.
	if got.ImpactScore != 1.0 {
		t.Errorf("expected impact score 1.0, got %v", got.ImpactScore)
	}
}

// TestGetReforms_HiddenExcluded verifies hidden rows never appear in the
// detail projection.
func TestGetReforms_HiddenExcluded(t *testing.T) {
	fx := seedReform(t)

	if err := db.DB.Model(&reforms.Reform{}).Where("id = ?", fx.reform.ID).
		Update("hidden", true).Error; err != nil {
		t.Fatalf("failed to hide reform: %v", err)
	}

	var body struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/reforms/?reform_type=%s", fx.reformType.Code)
	if code := getJSON(t, path, &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Count != 0 {
		t.Errorf("expected hidden reform excluded, got count=%d", body.Count)
	}
}

// TestGetReformsMap_TotalCount verifies the map projection reports the full
// filtered total alongside the limited page.
func TestGetReformsMap_TotalCount(t *testing.T) {
	fx := seedReform(t)

	var body struct {
		Reforms    []reforms.MapReformOut `json:"reforms"`
		Count      int                    `json:"count"`
		TotalCount int64                  `json:"total_count"`
	}
	path := fmt.Sprintf("/reforms/map?reform_type=%s", fx.reformType.Code)
	if code := getJSON(t, path, &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body.Count != 1 || body.TotalCount != 1 {
		t.Fatalf("expected count and total_count of 1, got %d/%d", body.Count, body.TotalCount)
	}
	if body.Reforms[0].ReformTypes[0].Code != fx.reformType.Code {
		t.Errorf("unexpected map payload: %+v", body.Reforms[0])
	}
}

// TestGetMovers_SeededPlaceAppears verifies the ranking projection surfaces
// the seeded place with its type count.
func TestGetMovers_SeededPlaceAppears(t *testing.T) {
	fx := seedReform(t)

	var body struct {
		Places []reforms.MoverOut `json:"places"`
	}
	path := fmt.Sprintf("/reforms/movers?reform_type=%s", fx.reformType.Code)
	if code := getJSON(t, path, &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(body.Places) != 1 {
		t.Fatalf("expected 1 mover, got %d", len(body.Places))
	}
	if body.Places[0].PlaceID != fx.place.ID || body.Places[0].ReformTypeCount != 1 {
		t.Errorf("unexpected mover: %+v", body.Places[0])
	}
}

// TestRejectSubmission_RemovedFromPendingQueue verifies rejection persists:
// the reform stays hidden but no longer shows up in the pending list, while
// untouched submissions remain queued.
func TestRejectSubmission_RemovedFromPendingQueue(t *testing.T) {
	fx := seedReform(t)

	newSubmission := func() reforms.Reform {
		sub := reforms.Reform{
			PlaceID:     fx.place.ID,
			ReformTypes: []reforms.ReformType{fx.reformType},
			Status:      reforms.StatusProposed,
			Hidden:      true,
		}
		if err := db.DB.Create(&sub).Error; err != nil {
			t.Fatalf("failed to create submission: %v", err)
		}
		return sub
	}
	rejected := newSubmission()
	pending := newSubmission()

	// Triage handlers mounted without the auth stack; the middleware gate has
	// its own tests.
	r := chi.NewRouter()
	r.Get("/submissions", reforms.ListPendingSubmissions)
	r.Post("/submissions/{id}/reject", reforms.RejectSubmission)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Post(fmt.Sprintf("%s/submissions/%d/reject", srv.URL, rejected.ID), "application/json", nil)
	if err != nil {
		t.Fatalf("POST reject: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var reloaded reforms.Reform
	if err := db.DB.First(&reloaded, rejected.ID).Error; err != nil {
		t.Fatalf("failed to reload rejected reform: %v", err)
	}
	if !reloaded.Hidden {
		t.Error("rejected reform must stay hidden")
	}
	if reloaded.RejectedAt == nil {
		t.Error("expected rejected_at to be set")
	}

	listResp, err := http.Get(srv.URL + "/submissions")
	if err != nil {
		t.Fatalf("GET submissions: %v", err)
	}
	defer listResp.Body.Close()
	var body struct {
		Reforms []reforms.ReformOut `json:"reforms"`
	}
	if err := json.NewDecoder(listResp.Body).Decode(&body); err != nil {
		t.Fatalf("decode submissions: %v", err)
	}
	sawPending := false
	for _, out := range body.Reforms {
		if out.ID == rejected.ID {
			t.Error("rejected submission must not reappear in the pending queue")
		}
		if out.ID == pending.ID {
			sawPending = true
		}
	}
	if !sawPending {
		t.Error("untouched submission should still be pending")
	}
}

// TestMergeReforms_CombinesRecords verifies the merge transaction moves type
// links, applies updates, and deletes the merged row.
func TestMergeReforms_CombinesRecords(t *testing.T) {
	fx := seedReform(t)

	// Second reform at the same place with its own type.
	suffix := uuid.New().String()[:8]
	rt2 := reforms.ReformType{Code: fmt.Sprintf("testing:%s", suffix), Name: "Second Type"}
	if err := db.DB.Create(&rt2).Error; err != nil {
		t.Fatalf("failed to create second type: %v", err)
	}
	dup := reforms.Reform{
		PlaceID:      fx.place.ID,
		ReformTypes:  []reforms.ReformType{rt2},
		Status:       reforms.StatusAdopted,
		AdoptionDate: fx.reform.AdoptionDate,
	}
	if err := db.DB.Create(&dup).Error; err != nil {
		t.Fatalf("failed to create duplicate reform: %v", err)
	}
	t.Cleanup(func() {
		db.DB.Exec("DELETE FROM atlas.reform_reform_types WHERE reform_type_id = ?", rt2.ID)
		db.DB.Delete(&reforms.Reform{}, dup.ID)
		db.DB.Delete(&reforms.ReformType{}, rt2.ID)
	})

	err := reforms.MergeReforms(reforms.MergeRequest{
		KeepReformID:  fx.reform.ID,
		MergeReformID: dup.ID,
		Updates:       map[string]any{"summary": "merged"},
	})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	var kept reforms.Reform
	if err := db.DB.Preload("ReformTypes").First(&kept, fx.reform.ID).Error; err != nil {
		t.Fatalf("failed to reload kept reform: %v", err)
	}
	if kept.Summary != "merged" {
		t.Errorf("expected updated summary, got %q", kept.Summary)
	}
	if len(kept.ReformTypes) != 2 {
		t.Errorf("expected union of 2 types, got %d", len(kept.ReformTypes))
	}

	var count int64
	db.DB.Model(&reforms.Reform{}).Where("id = ?", dup.ID).Count(&count)
	if count != 0 {
		t.Error("expected merged reform deleted")
	}
}
