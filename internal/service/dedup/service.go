// Package dedup implements duplicate route detection. Two policies share
// the same name-matching core: a soft advisory check offered before a
// contribution is submitted, and the fuzzy bus match the integration
// engine uses to decide between linking and creating.
package dedup

import (
	"context"
	"log/slog"

	"github.com/perundhu/perundhu-backend/internal/config"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

// busRepo defines the schedule repository interface needed by the dedup service.
type busRepo interface {
	ListBusesByRouteNames(ctx context.Context, origins, destinations []string) ([]*domain.Bus, error)
	ListBuses(ctx context.Context, limit int) ([]*domain.Bus, error)
}

// routeContribRepo defines the route contribution repository interface
// needed by the dedup service.
type routeContribRepo interface {
	ListByStatus(ctx context.Context, status domain.RouteStatus, limit, offset int) ([]*domain.RouteContribution, int, error)
}

// Service implements duplicate detection.
type Service struct {
	log     *slog.Logger
	buses   busRepo
	pending routeContribRepo
	cfg     config.DedupConfig
}

// NewService creates a new dedup service instance.
func NewService(logger *slog.Logger, buses busRepo, pending routeContribRepo, cfg config.DedupConfig) *Service {
	return &Service{
		log:     logger.With("service", "dedup"),
		buses:   buses,
		pending: pending,
		cfg:     cfg,
	}
}
