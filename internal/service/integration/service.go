// Package integration implements the engine that merges approved
// contributions into the canonical schedule graph. Timing tuples become
// timing records or skip ledger entries, never both; created records are
// then promoted into buses, either by corroborating an existing bus or by
// creating a new one.
package integration

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/config"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

// timingRepo defines the timing record store interface needed by the engine.
type timingRepo interface {
	FindByKey(ctx context.Context, key domain.TimingKey) (*domain.TimingRecord, error)
	Create(ctx context.Context, rec *domain.TimingRecord) error
	LinkBus(ctx context.Context, recordID, busID uuid.UUID) error
}

// skipRepo defines the skip ledger interface needed by the engine.
type skipRepo interface {
	Append(ctx context.Context, rec *domain.SkippedTimingRecord) error
}

// scheduleRepo defines the schedule graph repository interface needed by
// the engine.
type scheduleRepo interface {
	GetLocationByName(ctx context.Context, name string) (*domain.Location, error)
	GetLocationByNameFold(ctx context.Context, name string) (*domain.Location, error)
	SearchLocations(ctx context.Context, fragment string, limit int) ([]*domain.Location, error)
	CreateLocation(ctx context.Context, loc *domain.Location) error
	CreateBus(ctx context.Context, bus *domain.Bus) error
	GetBusByRoute(ctx context.Context, fromID, toID uuid.UUID, departure domain.TimeOfDay) (*domain.Bus, error)
	CountBusesBetween(ctx context.Context, fromID, toID uuid.UUID) (int, error)
	CreateStops(ctx context.Context, stops []domain.Stop) error
}

// busMatcher defines the fuzzy duplicate matcher interface needed by the
// promotion pass.
type busMatcher interface {
	MatchBus(ctx context.Context, origin, destination string, departure domain.TimeOfDay) (*domain.Bus, error)
}

// txManager defines the transaction manager interface needed by the engine.
type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Result summarizes one integration run.
type Result struct {
	CreatedRecords    int
	MergedRecords     int
	SkippedDuplicates int
	SkippedInvalid    int
	BusesCreated      int
}

// Service implements the integration engine.
type Service struct {
	log      *slog.Logger
	timings  timingRepo
	skips    skipRepo
	schedule scheduleRepo
	matcher  busMatcher
	tx       txManager
	cfg      config.IntegrationConfig
}

// NewService creates a new integration service instance.
func NewService(
	logger *slog.Logger,
	timings timingRepo,
	skips skipRepo,
	schedule scheduleRepo,
	matcher busMatcher,
	tx txManager,
	cfg config.IntegrationConfig,
) *Service {
	return &Service{
		log:      logger.With("service", "integration"),
		timings:  timings,
		skips:    skips,
		schedule: schedule,
		matcher:  matcher,
		tx:       tx,
		cfg:      cfg,
	}
}
