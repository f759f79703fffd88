// Package contribution drives the image contribution lifecycle: upload,
// extraction, review, and hand-off to the integration engine.
package contribution

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/adapter/vision"
	"github.com/perundhu/perundhu-backend/internal/domain"
	"github.com/perundhu/perundhu-backend/internal/service/integration"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type contribRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error)
	Create(ctx context.Context, c *domain.ImageContribution) error
	Update(ctx context.Context, c *domain.ImageContribution) error
	ListByStatus(ctx context.Context, status domain.ImageStatus, limit, offset int) ([]*domain.ImageContribution, int, error)
	ListPendingIntegration(ctx context.Context) ([]*domain.ImageContribution, error)
	CountByStatus(ctx context.Context) (map[domain.ImageStatus]int, error)
}

type skipRepo interface {
	ListByContribution(ctx context.Context, contributionID uuid.UUID) ([]*domain.SkippedTimingRecord, error)
	CountByReason(ctx context.Context) (map[domain.SkipReason]int, error)
}

type blobStore interface {
	Store(ctx context.Context, r io.Reader, ownerID, filename string) (string, error)
	Remove(ctx context.Context, url string) error
}

type extractionGateway interface {
	Available(ctx context.Context) bool
	Extract(ctx context.Context, imageURL string) (*vision.Extraction, error)
}

type integrator interface {
	IntegrateContribution(ctx context.Context, c *domain.ImageContribution) (*integration.Result, error)
}

// Service provides image contribution operations.
type Service struct {
	log        *slog.Logger
	contribs   contribRepo
	skips      skipRepo
	blobs      blobStore
	gateway    extractionGateway
	integrator integrator
	validate   *validator.Validate
}

// NewService creates a new contribution service.
func NewService(
	log *slog.Logger,
	contribs contribRepo,
	skips skipRepo,
	blobs blobStore,
	gateway extractionGateway,
	integrator integrator,
) *Service {
	return &Service{
		log:        log.With("service", "contribution"),
		contribs:   contribs,
		skips:      skips,
		blobs:      blobs,
		gateway:    gateway,
		integrator: integrator,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SubmitInput carries a new timing board upload.
type SubmitInput struct {
	SubmittedBy         string `validate:"required"`
	OriginLocation      string `validate:"required"`
	OriginLocationTamil *string
	OriginLat           *float64 `validate:"omitempty,latitude"`
	OriginLon           *float64 `validate:"omitempty,longitude"`
	Description         *string
	Filename            string    `validate:"required"`
	Image               io.Reader `validate:"required"`
}

// Submit stores the uploaded board image and creates a PENDING contribution.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*domain.ImageContribution, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	imageURL, err := s.blobs.Store(ctx, in.Image, in.SubmittedBy, in.Filename)
	if err != nil {
		return nil, fmt.Errorf("store board image: %w", err)
	}

	c := &domain.ImageContribution{
		ID:                  uuid.New(),
		SubmittedBy:         in.SubmittedBy,
		OriginLocation:      domain.NormalizePlaceName(in.OriginLocation),
		OriginLocationTamil: in.OriginLocationTamil,
		OriginLat:           in.OriginLat,
		OriginLon:           in.OriginLon,
		ImageURL:            imageURL,
		Description:         in.Description,
		Status:              domain.ImageStatusPending,
		SubmittedAt:         time.Now(),
	}

	if err := s.contribs.Create(ctx, c); err != nil {
		if rmErr := s.blobs.Remove(ctx, imageURL); rmErr != nil {
			s.log.WarnContext(ctx, "orphaned board image", slog.String("url", imageURL), slog.Any("error", rmErr))
		}
		return nil, fmt.Errorf("create contribution: %w", err)
	}

	s.log.InfoContext(ctx, "contribution submitted",
		slog.String("contribution_id", c.ID.String()),
		slog.String("origin", c.OriginLocation),
	)
	return c, nil
}

// GetByID returns one contribution with its extracted timings.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.ImageContribution, error) {
	return s.contribs.GetByID(ctx, id)
}

// ListByStatus returns a page of contributions plus the total count.
// An empty status lists everything.
func (s *Service) ListByStatus(ctx context.Context, status domain.ImageStatus, limit, offset int) ([]*domain.ImageContribution, int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.contribs.ListByStatus(ctx, status, limit, offset)
}

// ListSkipped returns the skip ledger entries for one contribution.
func (s *Service) ListSkipped(ctx context.Context, contributionID uuid.UUID) ([]*domain.SkippedTimingRecord, error) {
	if _, err := s.contribs.GetByID(ctx, contributionID); err != nil {
		return nil, err
	}
	return s.skips.ListByContribution(ctx, contributionID)
}

// Stats summarizes the review queue for the admin dashboard.
type Stats struct {
	ByStatus      map[domain.ImageStatus]int
	SkipsByReason map[domain.SkipReason]int
}

// GetStats returns contribution counts per status and skip counts per reason.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	byStatus, err := s.contribs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count contributions: %w", err)
	}
	byReason, err := s.skips.CountByReason(ctx)
	if err != nil {
		return nil, fmt.Errorf("count skips: %w", err)
	}
	return &Stats{ByStatus: byStatus, SkipsByReason: byReason}, nil
}
