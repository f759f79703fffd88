package dedup

import (
	"context"
	"log/slog"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// MatchBus finds the existing bus a newly created timing record should be
// linked to as corroboration: endpoints match at least fuzzily and the
// departure falls inside the time window. Returns nil when no bus
// qualifies and the record should become a new bus instead. Candidates
// are prefiltered by alias-expanded route names, with a bounded scan
// when the prefilter finds nothing.
func (s *Service) MatchBus(ctx context.Context, origin, destination string, departure domain.TimeOfDay) (*domain.Bus, error) {
	buses, err := s.candidateBuses(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	window := int(s.cfg.TimeWindow.Minutes())

	var best *domain.Bus
	bestDelta := window + 1
	for _, bus := range buses {
		if !s.namesMatch(bus.FromName, origin) || !s.namesMatch(bus.ToName, destination) {
			continue
		}
		delta := domain.MinutesApart(bus.Departure, departure)
		if delta > window || delta >= bestDelta {
			continue
		}
		best = bus
		bestDelta = delta
	}

	if best != nil {
		s.log.DebugContext(ctx, "fuzzy bus match",
			slog.String("origin", origin),
			slog.String("destination", destination),
			slog.String("bus_number", best.Number),
			slog.Int("minute_delta", bestDelta),
		)
	}

	return best, nil
}
