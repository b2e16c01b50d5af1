// Package postgres implements the catalog Repository and the proposal
// audit Store on PostgreSQL, via database/sql with the pgx driver. The
// schema is applied on startup so the engine is runnable against a
// fresh database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/raceatlas/raceatlas/pkg/catalog"
	"github.com/raceatlas/raceatlas/pkg/errors"
	"github.com/raceatlas/raceatlas/pkg/logging"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// so the same query methods serve both transactional and plain calls.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements catalog.Repository on PostgreSQL.
type Store struct {
	db *sql.DB // nil inside a transaction
	q  querier
}

// Open connects to the database, applies the schema and returns a
// ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.NewConfigError("postgres", "opening connection", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewConfigError("postgres", "pinging database", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.NewConfigError("postgres", "applying schema", err)
	}

	logging.Default().Debug().Msg("postgres store ready")
	return &Store{db: db, q: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the pool for the audit store sharing this connection.
func (s *Store) DB() *sql.DB { return s.db }

// Atomic runs fn in one transaction. The Repository passed to fn routes
// every call through that transaction. Nested calls join the ambient
// transaction instead of opening a second one.
func (s *Store) Atomic(ctx context.Context, fn func(catalog.Repository) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Column allowlists for dynamic updates. A proposed field outside the
// allowlist is not a column and is silently skipped.
var (
	eventColumns = map[string]bool{
		"name": true, "slug": true, "city": true, "country": true,
		"website": true, "latitude": true, "longitude": true,
		"status": true, "redirect_id": true, "needs_reindex": true,
	}
	editionColumns = map[string]bool{
		"year": true, "start_date": true, "end_date": true,
		"region_name": true, "region_code": true, "website": true,
		"confirmed": true, "confirmed_at": true,
	}
	raceColumns = map[string]bool{
		"name": true, "distance_km": true, "start_time": true,
		"price": true, "active": true,
	}
)

// buildUpdate assembles a dynamic UPDATE statement from a field map,
// restricted to the table's allowlist and with updated_at always
// bumped. Columns are ordered for deterministic statements.
func buildUpdate(table string, fields map[string]any, allowed map[string]bool, id int64) (string, []any, bool) {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if allowed[col] {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return "", nil, false
	}
	sort.Strings(cols)

	var sets []string
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, fields[col])
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	return query, args, true
}

// update executes a dynamic update and maps a missing row to not-found.
func (s *Store) update(ctx context.Context, table, resource string, id int64, fields map[string]any, allowed map[string]bool) error {
	query, args, ok := buildUpdate(table, fields, allowed, id)
	if !ok {
		return nil
	}

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", resource, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError(resource, strconv.FormatInt(id, 10))
	}
	return nil
}

// Events

func (s *Store) CreateEvent(ctx context.Context, event *catalog.Event) (int64, error) {
	const query = `
		INSERT INTO events (name, slug, city, country, website, latitude, longitude, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id int64
	err := s.q.QueryRowContext(ctx, query,
		event.Name, event.Slug, event.City, event.Country, event.Website,
		event.Latitude, event.Longitude, string(event.Status),
		event.CreatedAt, event.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	event.ID = id
	return id, nil
}

func (s *Store) UpdateEvent(ctx context.Context, id int64, fields map[string]any) error {
	return s.update(ctx, "events", "event", id, fields, eventColumns)
}

func (s *Store) EventByID(ctx context.Context, id int64) (*catalog.Event, error) {
	const query = `
		SELECT id, name, slug, city, country, website, latitude, longitude,
		       status, redirect_id, needs_reindex, created_at, updated_at
		FROM events WHERE id = $1`

	var (
		e        catalog.Event
		lat, lon sql.NullFloat64
		redirect sql.NullInt64
		status   string
	)
	err := s.q.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.Slug, &e.City, &e.Country, &e.Website,
		&lat, &lon, &status, &redirect, &e.NeedsReindex,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("event", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("select event: %w", err)
	}

	e.Status = catalog.EventStatus(status)
	if lat.Valid {
		e.Latitude = &lat.Float64
	}
	if lon.Valid {
		e.Longitude = &lon.Float64
	}
	if redirect.Valid {
		e.RedirectID = &redirect.Int64
	}
	return &e, nil
}

func (s *Store) TouchEvent(ctx context.Context, id int64) error {
	return s.update(ctx, "events", "event", id, map[string]any{"needs_reindex": true}, eventColumns)
}

// Editions

func (s *Store) CreateEdition(ctx context.Context, edition *catalog.Edition) (int64, error) {
	const query = `
		INSERT INTO editions (event_id, year, start_date, end_date, region_name, region_code,
		                      website, confirmed, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var id int64
	err := s.q.QueryRowContext(ctx, query,
		edition.EventID, edition.Year, edition.StartDate, edition.EndDate,
		edition.RegionName, edition.RegionCode, edition.Website,
		edition.Confirmed, edition.ConfirmedAt, edition.CreatedAt, edition.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert edition: %w", err)
	}
	edition.ID = id
	return id, nil
}

func (s *Store) UpdateEdition(ctx context.Context, id int64, fields map[string]any) error {
	return s.update(ctx, "editions", "edition", id, fields, editionColumns)
}

const editionSelect = `
	SELECT id, event_id, year, start_date, end_date, region_name, region_code,
	       website, confirmed, confirmed_at, created_at, updated_at
	FROM editions`

func scanEdition(row interface{ Scan(...any) error }) (*catalog.Edition, error) {
	var (
		e                    catalog.Edition
		start, end, confirmd sql.NullTime
	)
	err := row.Scan(
		&e.ID, &e.EventID, &e.Year, &start, &end, &e.RegionName, &e.RegionCode,
		&e.Website, &e.Confirmed, &confirmd, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		e.StartDate = &start.Time
	}
	if end.Valid {
		e.EndDate = &end.Time
	}
	if confirmd.Valid {
		e.ConfirmedAt = &confirmd.Time
	}
	return &e, nil
}

func (s *Store) EditionByID(ctx context.Context, id int64) (*catalog.Edition, error) {
	row := s.q.QueryRowContext(ctx, editionSelect+" WHERE id = $1", id)
	edition, err := scanEdition(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("edition", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("select edition: %w", err)
	}
	return edition, nil
}

func (s *Store) EditionsByEvent(ctx context.Context, eventID int64) ([]catalog.Edition, error) {
	rows, err := s.q.QueryContext(ctx, editionSelect+" WHERE event_id = $1 ORDER BY year", eventID)
	if err != nil {
		return nil, fmt.Errorf("select editions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Edition
	for rows.Next() {
		edition, err := scanEdition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edition: %w", err)
		}
		out = append(out, *edition)
	}
	return out, rows.Err()
}

// Organizers

func (s *Store) UpsertOrganizer(ctx context.Context, organizer *catalog.Organizer) (int64, error) {
	const query = `
		INSERT INTO organizers (edition_id, name, email, phone, website)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (edition_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email,
		    phone = EXCLUDED.phone, website = EXCLUDED.website
		RETURNING id`

	var id int64
	err := s.q.QueryRowContext(ctx, query,
		organizer.EditionID, organizer.Name, organizer.Email, organizer.Phone, organizer.Website,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert organizer: %w", err)
	}
	organizer.ID = id
	return id, nil
}

func (s *Store) OrganizersByEdition(ctx context.Context, editionID int64) ([]catalog.Organizer, error) {
	const query = `SELECT id, edition_id, name, email, phone, website FROM organizers WHERE edition_id = $1`

	rows, err := s.q.QueryContext(ctx, query, editionID)
	if err != nil {
		return nil, fmt.Errorf("select organizers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Organizer
	for rows.Next() {
		var o catalog.Organizer
		if err := rows.Scan(&o.ID, &o.EditionID, &o.Name, &o.Email, &o.Phone, &o.Website); err != nil {
			return nil, fmt.Errorf("scan organizer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Races

func (s *Store) CreateRace(ctx context.Context, race *catalog.Race) (int64, error) {
	const query = `
		INSERT INTO races (edition_id, name, distance_km, start_time, price, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := s.q.QueryRowContext(ctx, query,
		race.EditionID, race.Name, race.DistanceKM, race.StartTime,
		race.Price, race.Active, race.CreatedAt, race.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert race: %w", err)
	}
	race.ID = id
	return id, nil
}

func (s *Store) UpdateRace(ctx context.Context, id int64, fields map[string]any) error {
	return s.update(ctx, "races", "race", id, fields, raceColumns)
}

const raceSelect = `
	SELECT id, edition_id, name, distance_km, start_time, price, active, archived, created_at, updated_at
	FROM races`

func scanRace(row interface{ Scan(...any) error }) (*catalog.Race, error) {
	var (
		r     catalog.Race
		start sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.EditionID, &r.Name, &r.DistanceKM, &start,
		&r.Price, &r.Active, &r.Archived, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		r.StartTime = &start.Time
	}
	return &r, nil
}

func (s *Store) RaceByID(ctx context.Context, id int64) (*catalog.Race, error) {
	row := s.q.QueryRowContext(ctx, raceSelect+" WHERE id = $1 AND NOT archived", id)
	race, err := scanRace(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("race", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("select race: %w", err)
	}
	return race, nil
}

func (s *Store) RacesByEdition(ctx context.Context, editionID int64) ([]catalog.Race, error) {
	rows, err := s.q.QueryContext(ctx, raceSelect+" WHERE edition_id = $1 AND NOT archived ORDER BY id", editionID)
	if err != nil {
		return nil, fmt.Errorf("select races: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		out = append(out, *race)
	}
	return out, rows.Err()
}

// DeleteRace archives a race; rows are never physically removed.
func (s *Store) DeleteRace(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, `UPDATE races SET archived = TRUE, updated_at = NOW() WHERE id = $1 AND NOT archived`, id)
	if err != nil {
		return fmt.Errorf("archive race: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError("race", strconv.FormatInt(id, 10))
	}
	return nil
}
