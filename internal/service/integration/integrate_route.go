package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// IntegrateRoute merges an approved manual route contribution into the
// schedule graph: locations, a bus, its intermediate stops, and a
// manually verified timing record, all inside one transaction.
func (s *Service) IntegrateRoute(ctx context.Context, rc *domain.RouteContribution) (*Result, error) {
	departure, err := domain.ParseTimeText(rc.DepartureText)
	if err != nil {
		return nil, domain.NewValidationError("departure_time", fmt.Sprintf("unparsable time %q", rc.DepartureText))
	}

	var arrival *domain.TimeOfDay
	if rc.ArrivalText != nil && *rc.ArrivalText != "" {
		parsed, err := domain.ParseTimeText(*rc.ArrivalText)
		if err != nil {
			return nil, domain.NewValidationError("arrival_time", fmt.Sprintf("unparsable time %q", *rc.ArrivalText))
		}
		arrival = &parsed
	}

	result := &Result{}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		bus, err := s.busForRoute(ctx, rc, departure, arrival, result)
		if err != nil {
			return err
		}
		if err := s.createRouteStops(ctx, bus, rc.Stops); err != nil {
			return err
		}
		return s.recordRouteTiming(ctx, rc, bus, departure, result)
	})
	if err != nil {
		return nil, fmt.Errorf("integrate route contribution %s: %w", rc.ID, err)
	}

	s.log.InfoContext(ctx, "route contribution integrated",
		slog.String("contribution_id", rc.ID.String()),
		slog.Int("created", result.CreatedRecords),
		slog.Int("merged", result.MergedRecords),
		slog.Int("buses_created", result.BusesCreated),
	)

	return result, nil
}

// busForRoute finds the bus a contribution describes, or creates it. A
// fuzzy match against the existing schedule wins over creation so that a
// re-submitted route corroborates instead of duplicating.
func (s *Service) busForRoute(ctx context.Context, rc *domain.RouteContribution, departure domain.TimeOfDay, arrival *domain.TimeOfDay, result *Result) (*domain.Bus, error) {
	match, err := s.matcher.MatchBus(ctx, rc.Origin, rc.Destination, departure)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return match, nil
	}

	from, err := s.resolveLocationAt(ctx, rc.Origin, rc.OriginLat, rc.OriginLon)
	if err != nil {
		return nil, err
	}
	to, err := s.resolveLocationAt(ctx, rc.Destination, rc.DestinationLat, rc.DestinationLon)
	if err != nil {
		return nil, err
	}

	number := ""
	if rc.BusNumber != nil {
		number = *rc.BusNumber
	}
	if number == "" {
		count, err := s.schedule.CountBusesBetween(ctx, from.ID, to.ID)
		if err != nil {
			return nil, err
		}
		number = domain.GenerateManualBusNumber(rc.Origin, rc.Destination, count+1)
	}

	name := from.Name + " - " + to.Name
	if rc.BusName != nil && *rc.BusName != "" {
		name = *rc.BusName
	}

	arr := departure.AddMinutes(journeyMinutes(rc.Origin, rc.Destination, s.cfg.DefaultJourneyDuration))
	if arrival != nil {
		arr = *arrival
	}

	bus := &domain.Bus{
		ID:             uuid.New(),
		Number:         number,
		Name:           name,
		FromLocationID: from.ID,
		ToLocationID:   to.ID,
		FromName:       from.Name,
		ToName:         to.Name,
		Departure:      departure,
		Arrival:        arr,
		CreatedAt:      time.Now(),
	}

	err = s.schedule.CreateBus(ctx, bus)
	if err == nil {
		result.BusesCreated++
		return bus, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, err
	}

	return s.schedule.GetBusByRoute(ctx, from.ID, to.ID, departure)
}

// createRouteStops resolves every contributed stop to a location and
// inserts the stop rows, deduplicating repeats of the same place within
// the contribution. Stop times that do not parse are stored as unknown.
func (s *Service) createRouteStops(ctx context.Context, bus *domain.Bus, contributed []domain.StopContribution) error {
	if len(contributed) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	stops := make([]domain.Stop, 0, len(contributed))

	for _, sc := range contributed {
		loc, err := s.resolveLocation(ctx, sc.Name)
		if err != nil {
			return fmt.Errorf("resolve stop %q: %w", sc.Name, err)
		}
		if _, ok := seen[loc.Name]; ok {
			continue
		}
		seen[loc.Name] = struct{}{}

		stops = append(stops, domain.Stop{
			ID:         uuid.New(),
			BusID:      bus.ID,
			LocationID: loc.ID,
			Name:       loc.Name,
			Arrival:    parseOptionalTime(sc.ArrivalText),
			Departure:  parseOptionalTime(sc.DepartureText),
			StopOrder:  sc.Order,
		})
	}

	return s.schedule.CreateStops(ctx, stops)
}

// recordRouteTiming writes the manually verified timing record for the
// route, unless the timing store already holds the tuple.
func (s *Service) recordRouteTiming(ctx context.Context, rc *domain.RouteContribution, bus *domain.Bus, departure domain.TimeOfDay, result *Result) error {
	period := departure.Period()
	key := domain.NewTimingKey(rc.Origin, rc.Destination, departure, period)

	_, err := s.timings.FindByKey(ctx, key)
	switch {
	case err == nil:
		result.MergedRecords++
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}

	busID := bus.ID
	rec := &domain.TimingRecord{
		ID:          uuid.New(),
		Origin:      domain.NormalizePlaceName(rc.Origin),
		Destination: domain.NormalizePlaceName(rc.Destination),
		Departure:   departure,
		Period:      period,
		Source:      domain.SourceManuallyVerified,
		BusID:       &busID,
		CreatedAt:   time.Now(),
	}

	if err := s.timings.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			result.MergedRecords++
			return nil
		}
		return err
	}

	result.CreatedRecords++
	return nil
}

func parseOptionalTime(text *string) *domain.TimeOfDay {
	if text == nil || *text == "" {
		return nil
	}
	t, err := domain.ParseTimeText(*text)
	if err != nil {
		return nil
	}
	return &t
}
