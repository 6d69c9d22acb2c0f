package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ReformAtlas/RA-Backend/internal/reforms"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

// CLI flags
var (
	csvPath     = flag.String("csv", "", "Path to the source CSV (required)")
	dsn         = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	dryRun      = flag.Bool("dry-run", false, "Parse + validate only; no DB writes")
	confirm     = flag.Bool("confirm", false, "Required to perform writes")
	advisoryKey = flag.Int64("advisory-lock", 0, "Optional Postgres advisory lock key (e.g., 424242). 0 = disabled")
)

// CSV contract
// place_name,state,place_type,population,reform_types,status,adoption_date,
// scope,land_use,requirements,intensity,link_url,summary
// Multi-valued columns (reform_types, scope, land_use, requirements) are
// semicolon-separated. adoption_date accepts YYYY, YYYY-MM, YYYY-MM-DD, or
// M/D/YYYY; anything else is rejected during validation.

type ReformCSV struct {
	PlaceName    string
	StateCode    string
	PlaceType    string
	Population   *int64
	TypeCodes    []string
	Status       string
	AdoptionDate *time.Time
	Scope        []string
	LandUse      []string
	Requirements []string
	Intensity    *string
	LinkURL      string
	Summary      string
}

type Counts struct {
	Places      int64
	Reforms     int64
	ReformTypes int64
	TypeLinks   int64
}

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *csvPath == "" {
		fatalf("--csv is required")
	}
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	rows, err := loadCSV(*csvPath)
	if err != nil {
		fatalf("CSV error: %v", err)
	}

	if err := validateRows(rows); err != nil {
		fatalf("CSV validation failed: %v", err)
	}

	fmt.Printf("Loaded %d reforms from %s\n", len(rows), *csvPath)

	if *dryRun {
		printPlan(rows)
		fmt.Println("Dry run complete. No changes made.")
		return
	}

	if !*confirm {
		fatalf("Refusing to run without --confirm. Add --dry-run to preview.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		fatalf("begin tx: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // no-op if already committed
	}()

	// Optional advisory lock to avoid concurrent runs
	if *advisoryKey != 0 {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, *advisoryKey); err != nil {
			fatalf("advisory lock: %v", err)
		}
	}

	before, err := countAll(ctx, tx)
	if err != nil {
		fatalf("pre-count: %v", err)
	}
	fmt.Printf("Before: places=%d reforms=%d reform_types=%d type_links=%d\n",
		before.Places, before.Reforms, before.ReformTypes, before.TypeLinks)

	typeIDs, err := lookupTypeIDs(ctx, tx, rows)
	if err != nil {
		fatalf("resolve reform types: %v", err)
	}

	inserted, skipped, err := insertAll(ctx, tx, rows, typeIDs)
	if err != nil {
		fatalf("insert data: %v", err)
	}

	after, err := countAll(ctx, tx)
	if err != nil {
		fatalf("post-count: %v", err)
	}
	fmt.Printf("After:  places=%d reforms=%d reform_types=%d type_links=%d\n",
		after.Places, after.Reforms, after.ReformTypes, after.TypeLinks)
	fmt.Printf("Inserted %d reforms, skipped %d already present\n", inserted, skipped)

	if err := tx.Commit(); err != nil {
		fatalf("commit: %v", err)
	}
	fmt.Println("Seed complete ✅")
}

func loadCSV(path string) ([]ReformCSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	r := csv.NewReader(br)
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	required := []string{"place_name", "state", "place_type", "reform_types", "status"}
	for _, k := range required {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("missing required column: %s", k)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []ReformCSV
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}
		line++

		row := ReformCSV{
			PlaceName:    field(rec, "place_name"),
			PlaceType:    strings.ToLower(field(rec, "place_type")),
			TypeCodes:    splitMulti(field(rec, "reform_types")),
			Status:       reforms.NormalizeStatus(field(rec, "status")),
			Scope:        splitMulti(field(rec, "scope")),
			LandUse:      splitMulti(field(rec, "land_use")),
			Requirements: splitMulti(field(rec, "requirements")),
			LinkURL:      field(rec, "link_url"),
			Summary:      field(rec, "summary"),
		}

		code, ok := reforms.NormalizeDivision(field(rec, "state"))
		if !ok {
			return nil, fmt.Errorf("line %d: unknown state '%s'", line, field(rec, "state"))
		}
		row.StateCode = code

		if raw := field(rec, "population"); raw != "" {
			pop, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad population '%s'", line, raw)
			}
			row.Population = &pop
		}

		if raw := field(rec, "adoption_date"); raw != "" {
			t, ok := reforms.ParseFlexibleDate(raw)
			if !ok {
				return nil, fmt.Errorf("line %d: bad adoption_date '%s'", line, raw)
			}
			row.AdoptionDate = &t
		}

		if raw := strings.ToLower(field(rec, "intensity")); raw != "" {
			if raw != reforms.IntensityComplete && raw != reforms.IntensityPartial {
				return nil, fmt.Errorf("line %d: bad intensity '%s'", line, raw)
			}
			row.Intensity = &raw
		}

		out = append(out, row)
	}
	return out, nil
}

func splitMulti(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ";") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func validateRows(rows []ReformCSV) error {
	if len(rows) == 0 {
		return fmt.Errorf("CSV has no data rows")
	}
	for i, r := range rows {
		if r.PlaceName == "" {
			return fmt.Errorf("row %d: place_name is empty", i+2)
		}
		if len(r.TypeCodes) == 0 {
			return fmt.Errorf("row %d: reform_types is empty", i+2)
		}
		switch r.PlaceType {
		case reforms.PlaceTypeCity, reforms.PlaceTypeCounty, reforms.PlaceTypeState:
		default:
			return fmt.Errorf("row %d: bad place_type '%s'", i+2, r.PlaceType)
		}
	}
	return nil
}

func printPlan(rows []ReformCSV) {
	places := map[string]struct{}{}
	types := map[string]struct{}{}
	for _, r := range rows {
		places[r.StateCode+"/"+strings.ToLower(r.PlaceName)+"/"+r.PlaceType] = struct{}{}
		for _, c := range r.TypeCodes {
			types[c] = struct{}{}
		}
	}
	fmt.Println("Plan preview:")
	fmt.Printf("  Reforms to insert: %d\n", len(rows))
	fmt.Printf("  Distinct places: %d\n", len(places))
	fmt.Printf("  Distinct reform type codes: %d\n", len(types))
	fmt.Println("  Tables affected (upsert only): atlas.places, atlas.reforms, atlas.reform_reform_types")
}

func countAll(ctx context.Context, tx *sql.Tx) (Counts, error) {
	var c Counts
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM atlas.places`).Scan(&c.Places); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM atlas.reforms`).Scan(&c.Reforms); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM atlas.reform_types`).Scan(&c.ReformTypes); err != nil {
		return c, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM atlas.reform_reform_types`).Scan(&c.TypeLinks); err != nil {
		return c, err
	}
	return c, nil
}

// lookupTypeIDs resolves every CSV type code against atlas.reform_types.
// Unknown codes abort the run; the type catalog is managed in-app, not here.
func lookupTypeIDs(ctx context.Context, tx *sql.Tx, rows []ReformCSV) (map[string]int64, error) {
	distinct := map[string]struct{}{}
	for _, r := range rows {
		for _, c := range r.TypeCodes {
			distinct[c] = struct{}{}
		}
	}
	codes := make([]string, 0, len(distinct))
	for c := range distinct {
		codes = append(codes, c)
	}

	res := make(map[string]int64, len(codes))
	rs, err := tx.QueryContext(ctx,
		`SELECT code, id FROM atlas.reform_types WHERE code = ANY($1)`, pq.Array(codes))
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	for rs.Next() {
		var code string
		var id int64
		if err := rs.Scan(&code, &id); err != nil {
			return nil, err
		}
		res[code] = id
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}

	for _, c := range codes {
		if _, ok := res[c]; !ok {
			return nil, fmt.Errorf("unknown reform type code: %s", c)
		}
	}
	return res, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, rows []ReformCSV, typeIDs map[string]int64) (inserted, skipped int, err error) {
	for i, r := range rows {
		placeID, err := upsertPlace(ctx, tx, r)
		if err != nil {
			return inserted, skipped, fmt.Errorf("row %d: upsert place: %w", i+2, err)
		}

		reformID, created, err := insertReform(ctx, tx, placeID, r)
		if err != nil {
			return inserted, skipped, fmt.Errorf("row %d: insert reform: %w", i+2, err)
		}
		if !created {
			skipped++
			continue
		}
		inserted++

		for _, code := range r.TypeCodes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO atlas.reform_reform_types (reform_id, reform_type_id)
				 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				reformID, typeIDs[code]); err != nil {
				return inserted, skipped, fmt.Errorf("row %d: link type %s: %w", i+2, code, err)
			}
		}
	}
	return inserted, skipped, nil
}

func upsertPlace(ctx context.Context, tx *sql.Tx, r ReformCSV) (int64, error) {
	var popLog *float64
	if r.Population != nil {
		v := reforms.PopulationLog(*r.Population)
		popLog = &v
	}

	// Population only moves forward; a blank CSV cell never clears a known
	// count. Raw SQL here, so population_log is computed by hand.
	var id int64
	q := `INSERT INTO atlas.places (name, place_type, state_code, population, population_log, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, now(), now())
	      ON CONFLICT (state_code, name, place_type) DO UPDATE SET
	          population     = COALESCE(EXCLUDED.population, atlas.places.population),
	          population_log = COALESCE(EXCLUDED.population_log, atlas.places.population_log),
	          updated_at     = now()
	      RETURNING id`
	if err := tx.QueryRowContext(ctx, q, r.PlaceName, r.PlaceType, r.StateCode, r.Population, popLog).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// insertReform skips rows already present for the same place, status, date
// and link so re-running an export is safe. The impact score is computed
// here because inserts bypass the ORM hooks.
func insertReform(ctx context.Context, tx *sql.Tx, placeID int64, r ReformCSV) (int64, bool, error) {
	var existing int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM atlas.reforms
		 WHERE place_id = $1 AND status = $2
		   AND COALESCE(adoption_date, '1900-01-01') = COALESCE($3::date, '1900-01-01')
		   AND link_url = $4`,
		placeID, r.Status, r.AdoptionDate, r.LinkURL).Scan(&existing)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, err
	}

	score := reforms.ComputeImpactScore(r.Scope, r.LandUse, r.Requirements, r.Intensity)

	var id int64
	q := `INSERT INTO atlas.reforms
	          (place_id, status, adoption_date, scope, land_use, requirements,
	           intensity, impact_score, link_url, summary, hidden, created_at, updated_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, now(), now())
	      RETURNING id`
	if err := tx.QueryRowContext(ctx, q,
		placeID, r.Status, r.AdoptionDate,
		pq.Array(r.Scope), pq.Array(r.LandUse), pq.Array(r.Requirements),
		r.Intensity, score, r.LinkURL, r.Summary).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
	os.Exit(1)
}
