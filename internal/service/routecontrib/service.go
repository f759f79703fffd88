// Package routecontrib drives the manual route contribution lifecycle.
// Unlike image contributions there is no extraction step: a submitted
// route goes straight to review, and approval merges it into the
// schedule graph.
package routecontrib

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/domain"
	"github.com/perundhu/perundhu-backend/internal/service/dedup"
	"github.com/perundhu/perundhu-backend/internal/service/integration"
	"github.com/perundhu/perundhu-backend/pkg/ctxutil"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type routeRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RouteContribution, error)
	Create(ctx context.Context, rc *domain.RouteContribution) error
	Update(ctx context.Context, rc *domain.RouteContribution) error
	ListByStatus(ctx context.Context, status domain.RouteStatus, limit, offset int) ([]*domain.RouteContribution, int, error)
}

type duplicateChecker interface {
	CheckDuplicates(ctx context.Context, in dedup.CheckInput) ([]domain.DuplicateMatch, error)
}

type routeIntegrator interface {
	IntegrateRoute(ctx context.Context, rc *domain.RouteContribution) (*integration.Result, error)
}

// Service provides manual route contribution operations.
type Service struct {
	log        *slog.Logger
	routes     routeRepo
	checker    duplicateChecker
	integrator routeIntegrator
	validate   *validator.Validate
}

// NewService creates a new route contribution service.
func NewService(
	log *slog.Logger,
	routes routeRepo,
	checker duplicateChecker,
	integrator routeIntegrator,
) *Service {
	return &Service{
		log:        log.With("service", "routecontrib"),
		routes:     routes,
		checker:    checker,
		integrator: integrator,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SubmitInput carries a manually entered route.
type SubmitInput struct {
	SubmittedBy    string `validate:"required"`
	BusNumber      *string
	BusName        *string
	Origin         string   `validate:"required"`
	Destination    string   `validate:"required,nefield=Origin"`
	OriginLat      *float64 `validate:"omitempty,latitude"`
	OriginLon      *float64 `validate:"omitempty,longitude"`
	DestinationLat *float64 `validate:"omitempty,latitude"`
	DestinationLon *float64 `validate:"omitempty,longitude"`
	DepartureText  string   `validate:"required"`
	ArrivalText    *string
	Stops          []domain.StopContribution `validate:"dive"`
}

// SubmitResult pairs the stored contribution with the advisory duplicate
// matches found at submission time.
type SubmitResult struct {
	Contribution *domain.RouteContribution
	Duplicates   []domain.DuplicateMatch
}

// Submit validates and stores a PENDING route contribution. The duplicate
// check is advisory: matches are returned to the submitter but never block
// the submission, and a checker failure only drops the advisory list.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	if _, err := domain.ParseTimeText(in.DepartureText); err != nil {
		return nil, domain.NewValidationError("departureTime", fmt.Sprintf("unparsable time %q", in.DepartureText))
	}

	matches, err := s.checker.CheckDuplicates(ctx, dedup.CheckInput{
		Origin:      in.Origin,
		Destination: in.Destination,
		TimeText:    in.DepartureText,
		BusNumber:   in.BusNumber,
	})
	if err != nil {
		s.log.WarnContext(ctx, "duplicate check failed", slog.Any("error", err))
		matches = nil
	}

	rc := &domain.RouteContribution{
		ID:             uuid.New(),
		BusNumber:      in.BusNumber,
		BusName:        in.BusName,
		Origin:         domain.NormalizePlaceName(in.Origin),
		Destination:    domain.NormalizePlaceName(in.Destination),
		OriginLat:      in.OriginLat,
		OriginLon:      in.OriginLon,
		DestinationLat: in.DestinationLat,
		DestinationLon: in.DestinationLon,
		DepartureText:  in.DepartureText,
		ArrivalText:    in.ArrivalText,
		Stops:          in.Stops,
		Status:         domain.RouteStatusPending,
		SubmittedBy:    in.SubmittedBy,
		SubmittedAt:    time.Now(),
	}

	if err := s.routes.Create(ctx, rc); err != nil {
		return nil, fmt.Errorf("create route contribution: %w", err)
	}

	s.log.InfoContext(ctx, "route contribution submitted",
		slog.String("contribution_id", rc.ID.String()),
		slog.String("origin", rc.Origin),
		slog.String("destination", rc.Destination),
		slog.Int("duplicate_matches", len(matches)),
	)
	return &SubmitResult{Contribution: rc, Duplicates: matches}, nil
}

// GetByID returns one route contribution.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.RouteContribution, error) {
	return s.routes.GetByID(ctx, id)
}

// ListByStatus returns a page of route contributions plus the total count.
// An empty status lists everything.
func (s *Service) ListByStatus(ctx context.Context, status domain.RouteStatus, limit, offset int) ([]*domain.RouteContribution, int, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.routes.ListByStatus(ctx, status, limit, offset)
}

// Approve settles a PENDING contribution and merges the route into the
// schedule graph. Integration runs before the settled state is persisted:
// a merge failure leaves the contribution PENDING and retryable.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*domain.RouteContribution, error) {
	actor, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.NewValidationError("actor", "acting admin is required")
	}

	rc, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rc.Approve(actor, time.Now()); err != nil {
		return nil, err
	}

	res, err := s.integrator.IntegrateRoute(ctx, rc)
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Approved: %d timing records created, %d merged, %d buses created",
		res.CreatedRecords, res.MergedRecords, res.BusesCreated)
	rc.ValidationMessage = &msg
	if err := s.routes.Update(ctx, rc); err != nil {
		return nil, fmt.Errorf("approve route contribution: %w", err)
	}

	s.log.InfoContext(ctx, "route contribution approved",
		slog.String("contribution_id", rc.ID.String()),
		slog.Int("buses_created", res.BusesCreated),
	)
	return rc, nil
}

// Reject settles a PENDING contribution with a reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*domain.RouteContribution, error) {
	actor, ok := ctxutil.ActorIDFromCtx(ctx)
	if !ok {
		return nil, domain.NewValidationError("actor", "acting admin is required")
	}

	rc, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rc.Reject(actor, reason, time.Now()); err != nil {
		return nil, err
	}
	if err := s.routes.Update(ctx, rc); err != nil {
		return nil, fmt.Errorf("reject route contribution: %w", err)
	}

	s.log.InfoContext(ctx, "route contribution rejected",
		slog.String("contribution_id", rc.ID.String()),
		slog.String("reason", reason),
	)
	return rc, nil
}
