// Package routecontrib implements the manual route contribution repository
// using PostgreSQL. Intermediate stops are stored as a JSONB document on
// the contribution row.
package routecontrib

import (
	"context"
	"encoding/json"
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

// Repo provides route contribution persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new route contribution repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const routeColumns = `id, bus_number, bus_name, origin, destination,
	origin_lat, origin_lon, destination_lat, destination_lon,
	departure_text, arrival_text, stops, status, validation_message,
	submitted_by, submitted_at, processed_by, processed_at`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

const getRouteSQL = `SELECT ` + routeColumns + ` FROM route_contributions WHERE id = $1`

// GetByID returns a route contribution by primary key.
// Returns domain.ErrNotFound if the contribution does not exist.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RouteContribution, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var row routeRow
	if err := pgxscan.Get(ctx, q, &row, getRouteSQL, id); err != nil {
		return nil, mapError(err, "route_contribution", id)
	}
	return row.toDomain()
}

// ListByStatus returns route contributions in the given status ordered by
// submission time, oldest first, with pagination. A zero status lists all.
func (r *Repo) ListByStatus(ctx context.Context, status domain.RouteStatus, limit, offset int) ([]*domain.RouteContribution, int, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	where := squirrel.And{}
	if status != "" {
		where = append(where, squirrel.Eq{"status": string(status)})
	}

	countSQL, countArgs, err := builder.Select("COUNT(*)").From("route_contributions").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count route_contributions: %w", err)
	}

	listSQL, listArgs, err := builder.Select(routeColumns).
		From("route_contributions").
		Where(where).
		OrderBy("submitted_at ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	var rows []routeRow
	if err := pgxscan.Select(ctx, q, &rows, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list route_contributions: %w", err)
	}

	out := make([]*domain.RouteContribution, len(rows))
	for i, row := range rows {
		rc, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		out[i] = rc
	}
	return out, total, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

const insertRouteSQL = `INSERT INTO route_contributions (` + routeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// Create inserts a new route contribution.
func (r *Repo) Create(ctx context.Context, rc *domain.RouteContribution) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	stops, err := json.Marshal(rc.Stops)
	if err != nil {
		return fmt.Errorf("marshal stops: %w", err)
	}

	_, err = q.Exec(ctx, insertRouteSQL,
		rc.ID, postgres.PgText(rc.BusNumber), postgres.PgText(rc.BusName),
		rc.Origin, rc.Destination,
		postgres.PgFloat(rc.OriginLat), postgres.PgFloat(rc.OriginLon),
		postgres.PgFloat(rc.DestinationLat), postgres.PgFloat(rc.DestinationLon),
		rc.DepartureText, postgres.PgText(rc.ArrivalText), stops,
		string(rc.Status), postgres.PgText(rc.ValidationMessage),
		rc.SubmittedBy, rc.SubmittedAt, rc.ProcessedBy, rc.ProcessedAt,
	)
	if err != nil {
		return mapError(err, "route_contribution", rc.ID)
	}
	return nil
}

const updateRouteSQL = `UPDATE route_contributions SET
	status = $2, validation_message = $3, processed_by = $4, processed_at = $5
	WHERE id = $1`

// Update persists the review outcome fields.
// Returns domain.ErrNotFound for an unknown contribution.
func (r *Repo) Update(ctx context.Context, rc *domain.RouteContribution) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := q.Exec(ctx, updateRouteSQL,
		rc.ID, string(rc.Status), postgres.PgText(rc.ValidationMessage),
		rc.ProcessedBy, rc.ProcessedAt,
	)
	if err != nil {
		return mapError(err, "route_contribution", rc.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("route_contribution %s: %w", rc.ID, domain.ErrNotFound)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row type and mapping
// ---------------------------------------------------------------------------

type routeRow struct {
	ID                uuid.UUID     `db:"id"`
	BusNumber         pgtype.Text   `db:"bus_number"`
	BusName           pgtype.Text   `db:"bus_name"`
	Origin            string        `db:"origin"`
	Destination       string        `db:"destination"`
	OriginLat         pgtype.Float8 `db:"origin_lat"`
	OriginLon         pgtype.Float8 `db:"origin_lon"`
	DestinationLat    pgtype.Float8 `db:"destination_lat"`
	DestinationLon    pgtype.Float8 `db:"destination_lon"`
	DepartureText     string        `db:"departure_text"`
	ArrivalText       pgtype.Text   `db:"arrival_text"`
	Stops             []byte        `db:"stops"`
	Status            string        `db:"status"`
	ValidationMessage pgtype.Text   `db:"validation_message"`
	SubmittedBy       string        `db:"submitted_by"`
	SubmittedAt       time.Time     `db:"submitted_at"`
	ProcessedBy       *uuid.UUID    `db:"processed_by"`
	ProcessedAt       *time.Time    `db:"processed_at"`
}

func (row routeRow) toDomain() (*domain.RouteContribution, error) {
	var stops []domain.StopContribution
	if len(row.Stops) > 0 {
		if err := json.Unmarshal(row.Stops, &stops); err != nil {
			return nil, fmt.Errorf("unmarshal stops: %w", err)
		}
	}

	return &domain.RouteContribution{
		ID:                row.ID,
		BusNumber:         postgres.TextPtr(row.BusNumber),
		BusName:           postgres.TextPtr(row.BusName),
		Origin:            row.Origin,
		Destination:       row.Destination,
		OriginLat:         postgres.FloatPtr(row.OriginLat),
		OriginLon:         postgres.FloatPtr(row.OriginLon),
		DestinationLat:    postgres.FloatPtr(row.DestinationLat),
		DestinationLon:    postgres.FloatPtr(row.DestinationLon),
		DepartureText:     row.DepartureText,
		ArrivalText:       postgres.TextPtr(row.ArrivalText),
		Stops:             stops,
		Status:            domain.RouteStatus(row.Status),
		ValidationMessage: postgres.TextPtr(row.ValidationMessage),
		SubmittedBy:       row.SubmittedBy,
		SubmittedAt:       row.SubmittedAt,
		ProcessedBy:       row.ProcessedBy,
		ProcessedAt:       row.ProcessedAt,
	}, nil
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
