// Package skipledger implements the append-only skip ledger using
// PostgreSQL. Entries are only ever inserted and listed; there are no
// update or delete operations.
package skipledger

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

// Repo provides skip ledger persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new skip ledger repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

const skipColumns = `id, contribution_id, origin, destination, time_text,
	departure_time, period, skip_reason, existing_record_id, processed_by,
	notes, skipped_at`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

const appendSkipSQL = `INSERT INTO skipped_timing_records (` + skipColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Append records a skipped timing tuple.
func (r *Repo) Append(ctx context.Context, rec *domain.SkippedTimingRecord) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	_, err := q.Exec(ctx, appendSkipSQL,
		rec.ID, rec.ContributionID, rec.Origin, rec.Destination, rec.TimeText,
		postgres.PgTimeOfDayPtr(rec.Departure), string(rec.Period), string(rec.Reason),
		rec.ExistingRecordID, rec.ProcessedBy, postgres.PgText(rec.Notes), rec.SkippedAt,
	)
	if err != nil {
		return mapError(err, "skipped_timing_record", rec.ID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

const listByContributionSQL = `SELECT ` + skipColumns + `
	FROM skipped_timing_records WHERE contribution_id = $1 ORDER BY skipped_at`

// ListByContribution returns the ledger entries for one contribution.
func (r *Repo) ListByContribution(ctx context.Context, contributionID uuid.UUID) ([]*domain.SkippedTimingRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var rows []skipRow
	if err := pgxscan.Select(ctx, q, &rows, listByContributionSQL, contributionID); err != nil {
		return nil, fmt.Errorf("list skipped_timing_records: %w", err)
	}

	out := make([]*domain.SkippedTimingRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

const countByReasonSQL = `SELECT skip_reason, COUNT(*) FROM skipped_timing_records GROUP BY skip_reason`

// CountByReason returns ledger entry counts keyed by skip reason.
func (r *Repo) CountByReason(ctx context.Context) (map[domain.SkipReason]int, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := q.Query(ctx, countByReasonSQL)
	if err != nil {
		return nil, fmt.Errorf("count skipped_timing_records: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SkipReason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan reason count: %w", err)
		}
		counts[domain.SkipReason(reason)] = n
	}
	return counts, rows.Err()
}

// ---------------------------------------------------------------------------
// Row type and mapping
// ---------------------------------------------------------------------------

type skipRow struct {
	ID               uuid.UUID   `db:"id"`
	ContributionID   uuid.UUID   `db:"contribution_id"`
	Origin           string      `db:"origin"`
	Destination      string      `db:"destination"`
	TimeText         string      `db:"time_text"`
	DepartureTime    pgtype.Time `db:"departure_time"`
	Period           string      `db:"period"`
	SkipReason       string      `db:"skip_reason"`
	ExistingRecordID *uuid.UUID  `db:"existing_record_id"`
	ProcessedBy      *uuid.UUID  `db:"processed_by"`
	Notes            pgtype.Text `db:"notes"`
	SkippedAt        time.Time   `db:"skipped_at"`
}

func (row skipRow) toDomain() *domain.SkippedTimingRecord {
	return &domain.SkippedTimingRecord{
		ID:               row.ID,
		ContributionID:   row.ContributionID,
		Origin:           row.Origin,
		Destination:      row.Destination,
		TimeText:         row.TimeText,
		Departure:        postgres.TimeOfDayPtr(row.DepartureTime),
		Period:           domain.DayPeriod(row.Period),
		Reason:           domain.SkipReason(row.SkipReason),
		ExistingRecordID: row.ExistingRecordID,
		ProcessedBy:      row.ProcessedBy,
		Notes:            postgres.TextPtr(row.Notes),
		SkippedAt:        row.SkippedAt,
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
