/*
Package sqlite provides SQLite-backed persistence for trips, travel legs,
meal (hospitality) records, and country per-diem rates.

PURPOSE:
  The allowance engine itself is pure; this package is its collaborator
  layer. It stores what the user entered - trip bounds, per-day leg
  schedules, which meals the employer paid for - and the country rate
  table, and hands them back in the engine's domain types.

INTERFACES IMPLEMENTED:
  rates.Source: GetRate resolves country_rates rows; absence is nil, nil.

KEY TABLES:
  trips:         Trip bounds (dates and wall-clock boundary times)
  trip_legs:     Ordered legs per trip and calendar date
  meal_records:  Raw hospitality records (OR-reduced per date downstream)
  country_rates: Per-country full-day/partial-day euro amounts

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened with WAL mode so
  readers don't block each other.

USAGE:
  store, err := sqlite.New("./data/allowance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - rates/rates.go: The memoizing table sitting in front of GetRate
  - api/handlers.go: The CRUD surface over this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/allowance-engine/allowance"
)

// Store implements all persistence for the allowance service.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- Legs are ordered within a calendar date; position preserves the
	-- entry order, which matters for base-country resolution.
	CREATE TABLE IF NOT EXISTS trip_legs (
		id TEXT PRIMARY KEY,
		trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		leg_date TEXT NOT NULL,
		position INTEGER NOT NULL,
		trip_type TEXT NOT NULL DEFAULT '',
		departure_country TEXT NOT NULL DEFAULT '',
		departure_city TEXT NOT NULL DEFAULT '',
		arrival_country TEXT NOT NULL DEFAULT '',
		arrival_city TEXT NOT NULL DEFAULT '',
		stay_hours REAL NOT NULL DEFAULT 0,
		is_first_day INTEGER NOT NULL DEFAULT 0,
		is_last_day INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_trip_legs_trip_date
		ON trip_legs(trip_id, leg_date, position);

	CREATE TABLE IF NOT EXISTS meal_records (
		id TEXT PRIMARY KEY,
		trip_id TEXT NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
		record_date TEXT NOT NULL,
		breakfast INTEGER NOT NULL DEFAULT 0,
		lunch INTEGER NOT NULL DEFAULT 0,
		dinner INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_meal_records_trip_date
		ON meal_records(trip_id, record_date);

	-- Amounts stored as decimal strings to avoid float drift.
	CREATE TABLE IF NOT EXISTS country_rates (
		country_code TEXT PRIMARY KEY,
		full_day TEXT NOT NULL,
		partial_day TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRIPS
// =============================================================================

// TripRecord is a stored trip.
type TripRecord struct {
	ID        string
	Name      string
	StartDate allowance.Day
	EndDate   allowance.Day
	StartTime string
	EndTime   string
	CreatedAt time.Time
}

// ToTrip converts the record to the engine's trip type.
func (t TripRecord) ToTrip() allowance.Trip {
	return allowance.Trip{
		StartDate: t.StartDate,
		EndDate:   t.EndDate,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
	}
}

// SaveTrip inserts or updates a trip.
func (s *Store) SaveTrip(ctx context.Context, trip TripRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO trips (id, name, start_date, end_date, start_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			start_time = excluded.start_time,
			end_time = excluded.end_time
	`

	_, err := s.db.ExecContext(ctx, query,
		trip.ID, trip.Name,
		trip.StartDate.String(), trip.EndDate.String(),
		trip.StartTime, trip.EndTime,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save trip: %w", err)
	}
	return nil
}

// GetTrip retrieves a trip by ID. Returns nil, nil when absent.
func (s *Store) GetTrip(ctx context.Context, id string) (*TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, start_date, end_date, start_time, end_time, created_at FROM trips WHERE id = ?",
		id,
	)

	trip, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// ListTrips returns all trips, newest first.
func (s *Store) ListTrips(ctx context.Context) ([]TripRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, start_date, end_date, start_time, end_time, created_at FROM trips ORDER BY start_date DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []TripRecord
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *trip)
	}
	return trips, rows.Err()
}

// DeleteTrip removes a trip and, via cascade, its legs and meal records.
func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM trips WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*TripRecord, error) {
	var t TripRecord
	var startDate, endDate, createdAt string

	if err := row.Scan(&t.ID, &t.Name, &startDate, &endDate, &t.StartTime, &t.EndTime, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if t.StartDate, err = allowance.ParseDay(startDate); err != nil {
		return nil, fmt.Errorf("corrupt trip start date: %w", err)
	}
	if t.EndDate, err = allowance.ParseDay(endDate); err != nil {
		return nil, fmt.Errorf("corrupt trip end date: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

// =============================================================================
// LEGS
// =============================================================================

// LegRecord is a stored travel leg.
type LegRecord struct {
	ID     string
	TripID string
	Leg    allowance.Leg
}

// ReplaceLegs atomically replaces a trip's whole leg schedule. Replace
// rather than patch: the form submits the full schedule on every edit and
// the engine recomputes from scratch anyway.
func (s *Store) ReplaceLegs(ctx context.Context, tripID string, legs []LegRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM trip_legs WHERE trip_id = ?", tripID); err != nil {
		return fmt.Errorf("failed to clear legs: %w", err)
	}

	query := `
		INSERT INTO trip_legs
		(id, trip_id, leg_date, position, trip_type, departure_country, departure_city,
		 arrival_country, arrival_city, stay_hours, is_first_day, is_last_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, record := range legs {
		l := record.Leg
		_, err := tx.ExecContext(ctx, query,
			record.ID, tripID, l.Date.String(), i,
			l.Type.String(),
			l.DepartureCountryCode, l.DepartureCity,
			l.ArrivalCountryCode, l.ArrivalCity,
			l.StayHours,
			boolToInt(l.IsFirstDayOfTrip), boolToInt(l.IsLastDayOfTrip),
		)
		if err != nil {
			return fmt.Errorf("failed to insert leg: %w", err)
		}
	}

	return tx.Commit()
}

// ListLegs returns a trip's legs ordered by date, then entry order.
func (s *Store) ListLegs(ctx context.Context, tripID string) ([]LegRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trip_id, leg_date, trip_type, departure_country, departure_city,
		       arrival_country, arrival_city, stay_hours, is_first_day, is_last_day
		FROM trip_legs WHERE trip_id = ?
		ORDER BY leg_date, position`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []LegRecord
	for rows.Next() {
		var r LegRecord
		var legDate, tripType string
		var isFirst, isLast int
		err := rows.Scan(&r.ID, &r.TripID, &legDate, &tripType,
			&r.Leg.DepartureCountryCode, &r.Leg.DepartureCity,
			&r.Leg.ArrivalCountryCode, &r.Leg.ArrivalCity,
			&r.Leg.StayHours, &isFirst, &isLast)
		if err != nil {
			return nil, err
		}
		if r.Leg.Date, err = allowance.ParseDay(legDate); err != nil {
			return nil, fmt.Errorf("corrupt leg date: %w", err)
		}
		r.Leg.Type = allowance.ParseTripType(tripType)
		r.Leg.IsFirstDayOfTrip = isFirst != 0
		r.Leg.IsLastDayOfTrip = isLast != 0
		legs = append(legs, r)
	}
	return legs, rows.Err()
}

// LegsByDate loads a trip's legs grouped by calendar date, ready for the
// engine.
func (s *Store) LegsByDate(ctx context.Context, tripID string) (map[allowance.Day][]allowance.Leg, error) {
	records, err := s.ListLegs(ctx, tripID)
	if err != nil {
		return nil, err
	}

	byDate := make(map[allowance.Day][]allowance.Leg)
	for _, r := range records {
		byDate[r.Leg.Date] = append(byDate[r.Leg.Date], r.Leg)
	}
	return byDate, nil
}

// =============================================================================
// MEAL RECORDS
// =============================================================================

// MealRecordRow is one stored hospitality record.
type MealRecordRow struct {
	ID     string
	TripID string
	Record allowance.MealRecord
}

// ReplaceMealRecords atomically replaces a trip's hospitality records.
func (s *Store) ReplaceMealRecords(ctx context.Context, tripID string, records []MealRecordRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM meal_records WHERE trip_id = ?", tripID); err != nil {
		return fmt.Errorf("failed to clear meal records: %w", err)
	}

	query := `
		INSERT INTO meal_records (id, trip_id, record_date, breakfast, lunch, dinner)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, row := range records {
		_, err := tx.ExecContext(ctx, query,
			row.ID, tripID, row.Record.Date.String(),
			boolToInt(row.Record.Meals.Breakfast),
			boolToInt(row.Record.Meals.Lunch),
			boolToInt(row.Record.Meals.Dinner),
		)
		if err != nil {
			return fmt.Errorf("failed to insert meal record: %w", err)
		}
	}

	return tx.Commit()
}

// ListMealRecords returns a trip's raw hospitality records.
func (s *Store) ListMealRecords(ctx context.Context, tripID string) ([]MealRecordRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trip_id, record_date, breakfast, lunch, dinner
		FROM meal_records WHERE trip_id = ?
		ORDER BY record_date`,
		tripID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MealRecordRow
	for rows.Next() {
		var r MealRecordRow
		var recordDate string
		var breakfast, lunch, dinner int
		if err := rows.Scan(&r.ID, &r.TripID, &recordDate, &breakfast, &lunch, &dinner); err != nil {
			return nil, err
		}
		if r.Record.Date, err = allowance.ParseDay(recordDate); err != nil {
			return nil, fmt.Errorf("corrupt meal record date: %w", err)
		}
		r.Record.Meals = allowance.ProvidedMeals{
			Breakfast: breakfast != 0,
			Lunch:     lunch != 0,
			Dinner:    dinner != 0,
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MealsByDate loads and OR-reduces a trip's hospitality records per date.
func (s *Store) MealsByDate(ctx context.Context, tripID string) (map[allowance.Day]allowance.ProvidedMeals, error) {
	rows, err := s.ListMealRecords(ctx, tripID)
	if err != nil {
		return nil, err
	}

	records := make([]allowance.MealRecord, len(rows))
	for i, r := range rows {
		records[i] = r.Record
	}
	return allowance.ReduceMeals(records), nil
}

// =============================================================================
// COUNTRY RATES (rates.Source)
// =============================================================================

// GetRate implements rates.Source. Absence returns nil, nil.
func (s *Store) GetRate(ctx context.Context, countryCode string) (*allowance.CountryRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fullDay, partialDay string
	err := s.db.QueryRowContext(ctx,
		"SELECT full_day, partial_day FROM country_rates WHERE country_code = ?",
		countryCode,
	).Scan(&fullDay, &partialDay)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rate := allowance.CountryRate{CountryCode: countryCode}
	if rate.FullDay, err = decimal.NewFromString(fullDay); err != nil {
		return nil, fmt.Errorf("corrupt full-day rate for %s: %w", countryCode, err)
	}
	if rate.PartialDay, err = decimal.NewFromString(partialDay); err != nil {
		return nil, fmt.Errorf("corrupt partial-day rate for %s: %w", countryCode, err)
	}
	return &rate, nil
}

// UpsertRate inserts or updates one country's rate.
func (s *Store) UpsertRate(ctx context.Context, rate allowance.CountryRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO country_rates (country_code, full_day, partial_day, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(country_code) DO UPDATE SET
			full_day = excluded.full_day,
			partial_day = excluded.partial_day,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rate.CountryCode, rate.FullDay.String(), rate.PartialDay.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListRates returns all stored rates ordered by country code.
func (s *Store) ListRates(ctx context.Context) ([]allowance.CountryRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT country_code, full_day, partial_day FROM country_rates ORDER BY country_code",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []allowance.CountryRate
	for rows.Next() {
		var code, fullDay, partialDay string
		if err := rows.Scan(&code, &fullDay, &partialDay); err != nil {
			return nil, err
		}
		rate := allowance.CountryRate{CountryCode: code}
		if rate.FullDay, err = decimal.NewFromString(fullDay); err != nil {
			return nil, fmt.Errorf("corrupt full-day rate for %s: %w", code, err)
		}
		if rate.PartialDay, err = decimal.NewFromString(partialDay); err != nil {
			return nil, fmt.Errorf("corrupt partial-day rate for %s: %w", code, err)
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}

// SeedRates inserts the given rates if the table is empty. Used at
// startup so a fresh database starts with the statutory table.
func (s *Store) SeedRates(ctx context.Context, seed map[string]allowance.CountryRate) error {
	existing, err := s.ListRates(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, rate := range seed {
		if err := s.UpsertRate(ctx, rate); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
