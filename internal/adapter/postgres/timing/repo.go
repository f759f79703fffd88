// Package timing implements the timing record store using PostgreSQL.
// The UNIQUE constraint on (origin, destination, departure_time, period,
// source) is the authoritative duplicate guard: concurrent inserts of the
// same tuple surface as domain.ErrAlreadyExists.
package timing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	postgres "github.com/perundhu/perundhu-backend/internal/adapter/postgres"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

// Repo provides timing record persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new timing record repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

const recordColumns = `id, origin, destination, departure_time, period, source,
	contribution_id, bus_id, created_at`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

const findByKeySQL = `SELECT ` + recordColumns + `
	FROM timing_records
	WHERE lower(origin) = $1 AND lower(destination) = $2
	  AND departure_time = $3 AND period = $4
	LIMIT 1`

// FindByKey looks up a record by its exact-duplicate key.
// Returns domain.ErrNotFound when no record matches.
func (r *Repo) FindByKey(ctx context.Context, key domain.TimingKey) (*domain.TimingRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var row recordRow
	err := pgxscan.Get(ctx, q, &row, findByKeySQL,
		key.Origin, key.Destination, postgres.PgTimeOfDay(key.Departure), string(key.Period))
	if err != nil {
		return nil, mapError(err, "timing_record", uuid.Nil)
	}
	return row.toDomain(), nil
}

const listByContributionSQL = `SELECT ` + recordColumns + `
	FROM timing_records WHERE contribution_id = $1 ORDER BY created_at`

// ListByContribution returns all records created from one contribution.
func (r *Repo) ListByContribution(ctx context.Context, contributionID uuid.UUID) ([]*domain.TimingRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var rows []recordRow
	if err := pgxscan.Select(ctx, q, &rows, listByContributionSQL, contributionID); err != nil {
		return nil, fmt.Errorf("list timing_records: %w", err)
	}

	out := make([]*domain.TimingRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

const insertRecordSQL = `INSERT INTO timing_records (` + recordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create inserts a new timing record. A concurrent insert of the same
// tuple trips the uniqueness constraint and returns domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, rec *domain.TimingRecord) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	_, err := q.Exec(ctx, insertRecordSQL,
		rec.ID, rec.Origin, rec.Destination, postgres.PgTimeOfDay(rec.Departure),
		string(rec.Period), string(rec.Source), rec.ContributionID, rec.BusID, rec.CreatedAt,
	)
	if err != nil {
		return mapError(err, "timing_record", rec.ID)
	}
	return nil
}

const linkBusSQL = `UPDATE timing_records SET bus_id = $2 WHERE id = $1`

// LinkBus attaches a promoted or corroborated record to a bus.
// Returns domain.ErrNotFound for an unknown record.
func (r *Repo) LinkBus(ctx context.Context, recordID, busID uuid.UUID) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := q.Exec(ctx, linkBusSQL, recordID, busID)
	if err != nil {
		return mapError(err, "timing_record", recordID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timing_record %s: %w", recordID, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row type and mapping
// ---------------------------------------------------------------------------

type recordRow struct {
	ID             uuid.UUID   `db:"id"`
	Origin         string      `db:"origin"`
	Destination    string      `db:"destination"`
	DepartureTime  pgtype.Time `db:"departure_time"`
	Period         string      `db:"period"`
	Source         string      `db:"source"`
	ContributionID *uuid.UUID  `db:"contribution_id"`
	BusID          *uuid.UUID  `db:"bus_id"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (row recordRow) toDomain() *domain.TimingRecord {
	return &domain.TimingRecord{
		ID:             row.ID,
		Origin:         row.Origin,
		Destination:    row.Destination,
		Departure:      postgres.TimeOfDayValue(row.DepartureTime),
		Period:         domain.DayPeriod(row.Period),
		Source:         domain.TimingSource(row.Source),
		ContributionID: row.ContributionID,
		BusID:          row.BusID,
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
