// Package contribution implements the image contribution repository using
// PostgreSQL. A contribution row owns its extracted timing rows; timings are
// replaced wholesale on update.
package contribution

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

// Repo provides image contribution persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new contribution repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const contributionColumns = `id, submitted_by, origin_location, origin_location_tamil,
	origin_lat, origin_lon, image_url, thumbnail_url, description, status,
	ocr_confidence, requires_manual_review, validation_message,
	processed_by, processed_at, created_records, merged_records, submitted_at`

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

const getContributionSQL = `SELECT ` + contributionColumns + `
	FROM image_contributions WHERE id = $1`

const listTimingsSQL = `SELECT id, contribution_id, destination, destination_tamil,
	morning, afternoon, night
	FROM extracted_timings WHERE contribution_id = $1 ORDER BY position`

// GetByID returns a contribution with its extracted timings.
// Returns domain.ErrNotFound if the contribution does not exist.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var row contributionRow
	if err := pgxscan.Get(ctx, q, &row, getContributionSQL, id); err != nil {
		return nil, mapError(err, "image_contribution", id)
	}

	var timingRows []timingRow
	if err := pgxscan.Select(ctx, q, &timingRows, listTimingsSQL, id); err != nil {
		return nil, fmt.Errorf("list extracted_timings: %w", err)
	}

	c := row.toDomain()
	c.ExtractedTimings = make([]domain.ExtractedTiming, len(timingRows))
	for i, tr := range timingRows {
		c.ExtractedTimings[i] = tr.toDomain()
	}
	return c, nil
}

// ListByStatus returns contributions in the given status ordered by
// submission time, oldest first, with pagination. A zero status lists all.
// Extracted timings are not loaded for listings.
func (r *Repo) ListByStatus(ctx context.Context, status domain.ImageStatus, limit, offset int) ([]*domain.ImageContribution, int, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	where := squirrel.And{}
	if status != "" {
		where = append(where, squirrel.Eq{"status": string(status)})
	}

	countSQL, countArgs, err := builder.Select("COUNT(*)").From("image_contributions").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count image_contributions: %w", err)
	}

	listSQL, listArgs, err := builder.Select(contributionColumns).
		From("image_contributions").
		Where(where).
		OrderBy("submitted_at ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	var rows []contributionRow
	if err := pgxscan.Select(ctx, q, &rows, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list image_contributions: %w", err)
	}

	out := make([]*domain.ImageContribution, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, total, nil
}

const countByStatusSQL = `SELECT status, COUNT(*) FROM image_contributions GROUP BY status`

// CountByStatus returns contribution counts keyed by status.
func (r *Repo) CountByStatus(ctx context.Context) (map[domain.ImageStatus]int, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	rows, err := q.Query(ctx, countByStatusSQL)
	if err != nil {
		return nil, fmt.Errorf("count image_contributions: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ImageStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.ImageStatus(status)] = n
	}
	return counts, rows.Err()
}

const listPendingIntegrationSQL = `SELECT ` + contributionColumns + `
	FROM image_contributions
	WHERE status = 'APPROVED' AND validation_message LIKE 'Approved but integration pending%'
	ORDER BY submitted_at ASC`

// ListPendingIntegration returns approved contributions whose merge into
// the schedule graph has not completed yet.
func (r *Repo) ListPendingIntegration(ctx context.Context) ([]*domain.ImageContribution, error) {
	q := postgres.QuerierFromCtx(ctx, r.db)

	var rows []contributionRow
	if err := pgxscan.Select(ctx, q, &rows, listPendingIntegrationSQL); err != nil {
		return nil, fmt.Errorf("list pending integration: %w", err)
	}

	out := make([]*domain.ImageContribution, 0, len(rows))
	for _, row := range rows {
		c, err := r.GetByID(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

const insertContributionSQL = `INSERT INTO image_contributions (` + contributionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// Create inserts a new contribution together with its extracted timings.
func (r *Repo) Create(ctx context.Context, c *domain.ImageContribution) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	_, err := q.Exec(ctx, insertContributionSQL,
		c.ID, c.SubmittedBy, c.OriginLocation, postgres.PgText(c.OriginLocationTamil),
		postgres.PgFloat(c.OriginLat), postgres.PgFloat(c.OriginLon),
		c.ImageURL, postgres.PgText(c.ThumbnailURL), postgres.PgText(c.Description),
		string(c.Status), postgres.PgFloat(c.OCRConfidence), c.RequiresManualReview,
		postgres.PgText(c.ValidationMessage), c.ProcessedBy, c.ProcessedAt,
		c.CreatedRecords, c.MergedRecords, c.SubmittedAt,
	)
	if err != nil {
		return mapError(err, "image_contribution", c.ID)
	}

	return r.insertTimings(ctx, q, c)
}

const updateContributionSQL = `UPDATE image_contributions SET
	status = $2, ocr_confidence = $3, requires_manual_review = $4,
	validation_message = $5, processed_by = $6, processed_at = $7,
	created_records = $8, merged_records = $9
	WHERE id = $1`

const deleteTimingsSQL = `DELETE FROM extracted_timings WHERE contribution_id = $1`

// Update persists the mutable review fields and replaces the extracted
// timings wholesale. Returns domain.ErrNotFound for an unknown contribution.
func (r *Repo) Update(ctx context.Context, c *domain.ImageContribution) error {
	q := postgres.QuerierFromCtx(ctx, r.db)

	tag, err := q.Exec(ctx, updateContributionSQL,
		c.ID, string(c.Status), postgres.PgFloat(c.OCRConfidence), c.RequiresManualReview,
		postgres.PgText(c.ValidationMessage), c.ProcessedBy, c.ProcessedAt,
		c.CreatedRecords, c.MergedRecords,
	)
	if err != nil {
		return mapError(err, "image_contribution", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("image_contribution %s: %w", c.ID, domain.ErrNotFound)
	}

	if _, err := q.Exec(ctx, deleteTimingsSQL, c.ID); err != nil {
		return fmt.Errorf("delete extracted_timings: %w", err)
	}
	return r.insertTimings(ctx, q, c)
}

const insertTimingSQL = `INSERT INTO extracted_timings
	(id, contribution_id, destination, destination_tamil, morning, afternoon, night, position)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (r *Repo) insertTimings(ctx context.Context, q postgres.Querier, c *domain.ImageContribution) error {
	for i, t := range c.ExtractedTimings {
		id := t.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		_, err := q.Exec(ctx, insertTimingSQL,
			id, c.ID, t.Destination, postgres.PgText(t.DestinationTamil),
			t.Morning, t.Afternoon, t.Night, i,
		)
		if err != nil {
			return mapError(err, "extracted_timing", id)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row types and mapping
// ---------------------------------------------------------------------------

type contributionRow struct {
	ID                   uuid.UUID      `db:"id"`
	SubmittedBy          string         `db:"submitted_by"`
	OriginLocation       string         `db:"origin_location"`
	OriginLocationTamil  pgtype.Text    `db:"origin_location_tamil"`
	OriginLat            pgtype.Float8  `db:"origin_lat"`
	OriginLon            pgtype.Float8  `db:"origin_lon"`
	ImageURL             string         `db:"image_url"`
	ThumbnailURL         pgtype.Text    `db:"thumbnail_url"`
	Description          pgtype.Text    `db:"description"`
	Status               string         `db:"status"`
	OCRConfidence        pgtype.Float8  `db:"ocr_confidence"`
	RequiresManualReview bool           `db:"requires_manual_review"`
	ValidationMessage    pgtype.Text    `db:"validation_message"`
	ProcessedBy          *uuid.UUID     `db:"processed_by"`
	ProcessedAt          *time.Time     `db:"processed_at"`
	CreatedRecords       int            `db:"created_records"`
	MergedRecords        int            `db:"merged_records"`
	SubmittedAt          time.Time      `db:"submitted_at"`
}

func (row contributionRow) toDomain() *domain.ImageContribution {
	return &domain.ImageContribution{
		ID:                   row.ID,
		SubmittedBy:          row.SubmittedBy,
		OriginLocation:       row.OriginLocation,
		OriginLocationTamil:  postgres.TextPtr(row.OriginLocationTamil),
		OriginLat:            postgres.FloatPtr(row.OriginLat),
		OriginLon:            postgres.FloatPtr(row.OriginLon),
		ImageURL:             row.ImageURL,
		ThumbnailURL:         postgres.TextPtr(row.ThumbnailURL),
		Description:          postgres.TextPtr(row.Description),
		Status:               domain.ImageStatus(row.Status),
		OCRConfidence:        postgres.FloatPtr(row.OCRConfidence),
		RequiresManualReview: row.RequiresManualReview,
		ValidationMessage:    postgres.TextPtr(row.ValidationMessage),
		ProcessedBy:          row.ProcessedBy,
		ProcessedAt:          row.ProcessedAt,
		CreatedRecords:       row.CreatedRecords,
		MergedRecords:        row.MergedRecords,
		SubmittedAt:          row.SubmittedAt,
	}
}

type timingRow struct {
	ID               uuid.UUID   `db:"id"`
	ContributionID   uuid.UUID   `db:"contribution_id"`
	Destination      string      `db:"destination"`
	DestinationTamil pgtype.Text `db:"destination_tamil"`
	Morning          []string    `db:"morning"`
	Afternoon        []string    `db:"afternoon"`
	Night            []string    `db:"night"`
}

func (row timingRow) toDomain() domain.ExtractedTiming {
	return domain.ExtractedTiming{
		ID:               row.ID,
		Destination:      row.Destination,
		DestinationTamil: postgres.TextPtr(row.DestinationTamil),
		Morning:          row.Morning,
		Afternoon:        row.Afternoon,
		Night:            row.Night,
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
