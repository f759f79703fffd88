// Package schedule implements the canonical schedule graph repository
// (locations, buses, stops) using PostgreSQL. The UNIQUE constraint on
// (from_location_id, to_location_id, departure_time) guards against two
// reviewers promoting the same route concurrently.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/perundhu/perundhu-backend/internal/adapter/postgres"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

// Repo provides schedule graph persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new schedule repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ---------------------------------------------------------------------------
// Locations
// ---------------------------------------------------------------------------

const locationColumns = `id, name, name_tamil, lat, lon, created_at`

const getLocationByNameSQL = `SELECT ` + locationColumns + ` FROM locations WHERE name = $1`

// GetLocationByName returns the location with the exact name.
// Returns domain.ErrNotFound if no such location exists.
func (r *Repo) GetLocationByName(ctx context.Context, name string) (*domain.Location, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var row locationRow
	if err := pgxscan.Get(ctx, q, &row, getLocationByNameSQL, name); err != nil {
		return nil, mapError(err, "location", uuid.Nil)
	}
	return row.toDomain(), nil
}

const getLocationFoldSQL = `SELECT ` + locationColumns + ` FROM locations WHERE lower(name) = lower($1) LIMIT 1`

// GetLocationByNameFold returns a location matching the name case-insensitively.
func (r *Repo) GetLocationByNameFold(ctx context.Context, name string) (*domain.Location, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var row locationRow
	if err := pgxscan.Get(ctx, q, &row, getLocationFoldSQL, name); err != nil {
		return nil, mapError(err, "location", uuid.Nil)
	}
	return row.toDomain(), nil
}

const searchLocationsSQL = `SELECT ` + locationColumns + `
	FROM locations WHERE name ILIKE '%' || $1 || '%' ORDER BY length(name) LIMIT $2`

// SearchLocations returns locations whose name contains the fragment,
// shortest names first.
func (r *Repo) SearchLocations(ctx context.Context, fragment string, limit int) ([]*domain.Location, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var rows []locationRow
	if err := pgxscan.Select(ctx, q, &rows, searchLocationsSQL, fragment, limit); err != nil {
		return nil, fmt.Errorf("search locations: %w", err)
	}

	out := make([]*domain.Location, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

const insertLocationSQL = `INSERT INTO locations (` + locationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)`

// CreateLocation inserts a new location. Names are unique; a concurrent
// insert of the same name returns domain.ErrAlreadyExists.
func (r *Repo) CreateLocation(ctx context.Context, loc *domain.Location) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	_, err := q.Exec(ctx, insertLocationSQL,
		loc.ID, loc.Name, postgres.PgText(loc.NameTamil),
		postgres.PgFloat(loc.Lat), postgres.PgFloat(loc.Lon), loc.CreatedAt,
	)
	if err != nil {
		return mapError(err, "location", loc.ID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Buses
// ---------------------------------------------------------------------------

const busColumns = `b.id, b.number, b.name, b.from_location_id, b.to_location_id,
	fl.name AS from_name, tl.name AS to_name, b.departure_time, b.arrival_time, b.created_at`

const busJoins = ` FROM buses b
	JOIN locations fl ON fl.id = b.from_location_id
	JOIN locations tl ON tl.id = b.to_location_id`

const insertBusSQL = `INSERT INTO buses
	(id, number, name, from_location_id, to_location_id, departure_time, arrival_time, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// CreateBus inserts a new bus. The route uniqueness constraint turns a
// concurrent duplicate promotion into domain.ErrAlreadyExists.
func (r *Repo) CreateBus(ctx context.Context, bus *domain.Bus) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	_, err := q.Exec(ctx, insertBusSQL,
		bus.ID, bus.Number, bus.Name, bus.FromLocationID, bus.ToLocationID,
		postgres.PgTimeOfDay(bus.Departure), postgres.PgTimeOfDay(bus.Arrival), bus.CreatedAt,
	)
	if err != nil {
		return mapError(err, "bus", bus.ID)
	}
	return nil
}

const getBusByRouteSQL = `SELECT ` + busColumns + busJoins + `
	WHERE b.from_location_id = $1 AND b.to_location_id = $2 AND b.departure_time = $3`

// GetBusByRoute returns the bus on the exact route and departure.
// Used to re-read after a unique violation during promotion.
func (r *Repo) GetBusByRoute(ctx context.Context, fromID, toID uuid.UUID, departure domain.TimeOfDay) (*domain.Bus, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var row busRow
	err := pgxscan.Get(ctx, q, &row, getBusByRouteSQL, fromID, toID, postgres.PgTimeOfDay(departure))
	if err != nil {
		return nil, mapError(err, "bus", uuid.Nil)
	}
	return row.toDomain(), nil
}

const countBusesBetweenSQL = `SELECT COUNT(*) FROM buses
	WHERE from_location_id = $1 AND to_location_id = $2`

// CountBusesBetween returns how many buses exist on the route. Used to
// derive the sequence part of generated bus numbers.
func (r *Repo) CountBusesBetween(ctx context.Context, fromID, toID uuid.UUID) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var n int
	if err := q.QueryRow(ctx, countBusesBetweenSQL, fromID, toID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count buses: %w", err)
	}
	return n, nil
}

// ListBusesByRouteNames returns buses whose endpoints match any of the
// given name terms by containment in either direction. This is the
// candidate prefilter for duplicate detection; the dedup service expands
// a queried name through its alias group before calling, and scoring
// happens there.
func (r *Repo) ListBusesByRouteNames(ctx context.Context, origins, destinations []string) ([]*domain.Bus, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	query := builder.Select(busColumns).
		From("buses b").
		Join("locations fl ON fl.id = b.from_location_id").
		Join("locations tl ON tl.id = b.to_location_id").
		Where(nameContains("fl.name", origins)).
		Where(nameContains("tl.name", destinations)).
		OrderBy("b.departure_time")

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build bus query: %w", err)
	}

	var rows []busRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}

	out := make([]*domain.Bus, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// nameContains builds the containment filter for one endpoint column over
// every query term.
func nameContains(column string, terms []string) squirrel.Or {
	or := make(squirrel.Or, 0, 2*len(terms))
	for _, term := range terms {
		or = append(or,
			squirrel.Expr(column+" ILIKE '%' || ? || '%'", term),
			squirrel.Expr("? ILIKE '%' || "+column+" || '%'", term),
		)
	}
	return or
}

const listBusesSQL = `SELECT ` + busColumns + busJoins + `
	ORDER BY b.departure_time
	LIMIT $1`

// ListBuses returns up to limit buses across all routes. The dedup
// service falls back to this bounded scan when the name prefilter finds
// no candidates, so misspellings beyond the alias table still reach the
// scorer.
func (r *Repo) ListBuses(ctx context.Context, limit int) ([]*domain.Bus, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var rows []busRow
	if err := pgxscan.Select(ctx, q, &rows, listBusesSQL, limit); err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}

	out := make([]*domain.Bus, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Stops
// ---------------------------------------------------------------------------

const insertStopSQL = `INSERT INTO stops
	(id, bus_id, location_id, name, arrival_time, departure_time, stop_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (bus_id, location_id) DO NOTHING`

// CreateStops inserts the stops of a bus. Re-inserting a stop at a
// location the bus already halts at is a no-op.
func (r *Repo) CreateStops(ctx context.Context, stops []domain.Stop) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	for _, s := range stops {
		_, err := q.Exec(ctx, insertStopSQL,
			s.ID, s.BusID, s.LocationID, s.Name,
			postgres.PgTimeOfDayPtr(s.Arrival), postgres.PgTimeOfDayPtr(s.Departure), s.StopOrder,
		)
		if err != nil {
			return mapError(err, "stop", s.ID)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row types and mapping
// ---------------------------------------------------------------------------

type locationRow struct {
	ID        uuid.UUID     `db:"id"`
	Name      string        `db:"name"`
	NameTamil pgtype.Text   `db:"name_tamil"`
	Lat       pgtype.Float8 `db:"lat"`
	Lon       pgtype.Float8 `db:"lon"`
	CreatedAt time.Time     `db:"created_at"`
}

func (row locationRow) toDomain() *domain.Location {
	return &domain.Location{
		ID:        row.ID,
		Name:      row.Name,
		NameTamil: postgres.TextPtr(row.NameTamil),
		Lat:       postgres.FloatPtr(row.Lat),
		Lon:       postgres.FloatPtr(row.Lon),
		CreatedAt: row.CreatedAt,
	}
}

type busRow struct {
	ID             uuid.UUID   `db:"id"`
	Number         string      `db:"number"`
	Name           string      `db:"name"`
	FromLocationID uuid.UUID   `db:"from_location_id"`
	ToLocationID   uuid.UUID   `db:"to_location_id"`
	FromName       string      `db:"from_name"`
	ToName         string      `db:"to_name"`
	DepartureTime  pgtype.Time `db:"departure_time"`
	ArrivalTime    pgtype.Time `db:"arrival_time"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (row busRow) toDomain() *domain.Bus {
	return &domain.Bus{
		ID:             row.ID,
		Number:         row.Number,
		Name:           row.Name,
		FromLocationID: row.FromLocationID,
		ToLocationID:   row.ToLocationID,
		FromName:       row.FromName,
		ToName:         row.ToName,
		Departure:      postgres.TimeOfDayValue(row.DepartureTime),
		Arrival:        postgres.TimeOfDayValue(row.ArrivalTime),
		CreatedAt:      row.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, entity string, id uuid.UUID) error {
	if err == nil {
		return nil
	}

	// context errors pass through as-is
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	// pgx.ErrNoRows -> domain.ErrNotFound
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}

	// PgError codes
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s %s: %w", entity, id, domain.ErrValidation)
		}
	}

	// Everything else: wrap with context
	return fmt.Errorf("%s %s: %w", entity, id, err)
}
