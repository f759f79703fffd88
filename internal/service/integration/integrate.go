package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/perundhu/perundhu-backend/internal/domain"
	"github.com/perundhu/perundhu-backend/pkg/ctxutil"
)

// IntegrateContribution merges an approved image contribution into the
// schedule graph. The whole run happens inside one transaction; for every
// (destination, period, time) tuple exactly one of a timing record or a
// skip ledger entry is written. Re-running is safe: previously created
// tuples resolve to DUPLICATE_EXACT skips.
func (s *Service) IntegrateContribution(ctx context.Context, c *domain.ImageContribution) (*Result, error) {
	result := &Result{}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		created, err := s.createRecords(ctx, c, result)
		if err != nil {
			return err
		}
		return s.promoteRecords(ctx, created, result)
	})
	if err != nil {
		return nil, fmt.Errorf("integrate contribution %s: %w", c.ID, err)
	}

	s.log.InfoContext(ctx, "contribution integrated",
		slog.String("contribution_id", c.ID.String()),
		slog.Int("created", result.CreatedRecords),
		slog.Int("merged", result.MergedRecords),
		slog.Int("skipped_duplicates", result.SkippedDuplicates),
		slog.Int("skipped_invalid", result.SkippedInvalid),
	)

	return result, nil
}

// createRecords runs the first pass: normalize every extracted time and
// either create a timing record or append a skip entry. An unreadable
// string is re-listed in all three buckets; the seen set collapses those
// copies to a single INVALID_TIME skip. Parseable repeats are NOT
// collapsed: the second copy finds the record created moments earlier and
// lands in the ledger as a DUPLICATE_EXACT skip, so every listed time
// still yields exactly one record or skip.
func (s *Service) createRecords(ctx context.Context, c *domain.ImageContribution, result *Result) ([]*domain.TimingRecord, error) {
	var created []*domain.TimingRecord
	seenInvalid := make(map[string]struct{})

	for _, timing := range c.ExtractedTimings {
		for _, period := range domain.Periods {
			for _, timeText := range timing.Bucket(period) {
				departure, err := domain.ParseTimeText(timeText)
				if err != nil {
					tuple := timing.Destination + "\x00" + timeText
					if _, ok := seenInvalid[tuple]; ok {
						continue
					}
					seenInvalid[tuple] = struct{}{}

					result.SkippedInvalid++
					if err := s.appendSkip(ctx, c.ID, c.OriginLocation, timing.Destination, timeText, nil, period, domain.SkipInvalidTime, nil); err != nil {
						return nil, err
					}
					continue
				}

				rec, err := s.createRecord(ctx, c, timing.Destination, timeText, departure, result)
				if err != nil {
					return nil, err
				}
				if rec != nil {
					created = append(created, rec)
				}
			}
		}
	}

	return created, nil
}

// createRecord handles one parsed (destination, time) tuple. A nil record
// with nil error means the tuple went to the skip ledger. The canonical
// period comes from the parsed time, not from the bucket the board listed
// it in.
func (s *Service) createRecord(ctx context.Context, c *domain.ImageContribution, destination, timeText string, departure domain.TimeOfDay, result *Result) (*domain.TimingRecord, error) {
	period := departure.Period()
	key := domain.NewTimingKey(c.OriginLocation, destination, departure, period)

	existing, err := s.timings.FindByKey(ctx, key)
	switch {
	case err == nil:
		result.SkippedDuplicates++
		return nil, s.appendSkip(ctx, c.ID, c.OriginLocation, destination, timeText, &departure, period, domain.SkipDuplicateExact, &existing.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	contribID := c.ID
	rec := &domain.TimingRecord{
		ID:             uuid.New(),
		Origin:         domain.NormalizePlaceName(c.OriginLocation),
		Destination:    domain.NormalizePlaceName(destination),
		Departure:      departure,
		Period:         period,
		Source:         domain.SourceOCRExtracted,
		ContributionID: &contribID,
		CreatedAt:      time.Now(),
	}

	if err := s.timings.Create(ctx, rec); err != nil {
		// A concurrent integration beat us to the key.
		if errors.Is(err, domain.ErrAlreadyExists) {
			result.SkippedDuplicates++
			return nil, s.appendSkip(ctx, c.ID, c.OriginLocation, destination, timeText, &departure, period, domain.SkipDuplicateExact, nil)
		}
		return nil, err
	}

	result.CreatedRecords++
	return rec, nil
}

func (s *Service) appendSkip(ctx context.Context, contribID uuid.UUID, origin, destination, timeText string, departure *domain.TimeOfDay, period domain.DayPeriod, reason domain.SkipReason, existingID *uuid.UUID) error {
	skip := &domain.SkippedTimingRecord{
		ID:               uuid.New(),
		ContributionID:   contribID,
		Origin:           domain.NormalizePlaceName(origin),
		Destination:      domain.NormalizePlaceName(destination),
		TimeText:         timeText,
		Departure:        departure,
		Period:           period,
		Reason:           reason,
		ExistingRecordID: existingID,
		SkippedAt:        time.Now(),
	}
	if actor, ok := ctxutil.ActorIDFromCtx(ctx); ok {
		skip.ProcessedBy = &actor
	}
	if err := s.skips.Append(ctx, skip); err != nil {
		return fmt.Errorf("append skip record: %w", err)
	}
	return nil
}

// promoteRecords runs the second pass: every created record either
// corroborates an existing bus or becomes a new one.
func (s *Service) promoteRecords(ctx context.Context, created []*domain.TimingRecord, result *Result) error {
	for _, rec := range created {
		if err := s.promoteRecord(ctx, rec, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) promoteRecord(ctx context.Context, rec *domain.TimingRecord, result *Result) error {
	match, err := s.matcher.MatchBus(ctx, rec.Origin, rec.Destination, rec.Departure)
	if err != nil {
		return err
	}
	if match != nil {
		if err := s.timings.LinkBus(ctx, rec.ID, match.ID); err != nil {
			return err
		}
		result.MergedRecords++
		return nil
	}

	bus, createdBus, err := s.createBusForRecord(ctx, rec)
	if err != nil {
		return err
	}
	if err := s.timings.LinkBus(ctx, rec.ID, bus.ID); err != nil {
		return err
	}
	if createdBus {
		result.BusesCreated++
	} else {
		result.MergedRecords++
	}
	return nil
}

// createBusForRecord creates the Location and Bus rows for a record that
// matched nothing. The route uniqueness constraint is the authoritative
// guard: losing the race to a concurrent approval downgrades the insert
// to a link against the winner's bus.
func (s *Service) createBusForRecord(ctx context.Context, rec *domain.TimingRecord) (*domain.Bus, bool, error) {
	from, err := s.resolveLocation(ctx, rec.Origin)
	if err != nil {
		return nil, false, err
	}
	to, err := s.resolveLocation(ctx, rec.Destination)
	if err != nil {
		return nil, false, err
	}

	count, err := s.schedule.CountBusesBetween(ctx, from.ID, to.ID)
	if err != nil {
		return nil, false, err
	}

	bus := &domain.Bus{
		ID:             uuid.New(),
		Number:         domain.GenerateBusNumber(rec.Origin, rec.Destination, count+1),
		Name:           rec.Origin + " - " + rec.Destination,
		FromLocationID: from.ID,
		ToLocationID:   to.ID,
		FromName:       from.Name,
		ToName:         to.Name,
		Departure:      rec.Departure,
		Arrival:        rec.Departure.AddMinutes(journeyMinutes(rec.Origin, rec.Destination, s.cfg.DefaultJourneyDuration)),
		CreatedAt:      time.Now(),
	}

	err = s.schedule.CreateBus(ctx, bus)
	if err == nil {
		return bus, true, nil
	}
	if !errors.Is(err, domain.ErrAlreadyExists) {
		return nil, false, err
	}

	existing, err := s.schedule.GetBusByRoute(ctx, from.ID, to.ID, rec.Departure)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// resolveLocation finds or creates the location for a place name, trying
// progressively looser strategies: exact, case-folded, partial, create.
func (s *Service) resolveLocation(ctx context.Context, name string) (*domain.Location, error) {
	return s.resolveLocationAt(ctx, name, nil, nil)
}

// resolveLocationAt is resolveLocation with coordinates attached when the
// lookup falls through to creation.
func (s *Service) resolveLocationAt(ctx context.Context, name string, lat, lon *float64) (*domain.Location, error) {
	normalized := domain.NormalizePlaceName(name)

	loc, err := s.schedule.GetLocationByName(ctx, normalized)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	loc, err = s.schedule.GetLocationByNameFold(ctx, normalized)
	if err == nil {
		return loc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	partial, err := s.schedule.SearchLocations(ctx, normalized, 1)
	if err != nil {
		return nil, err
	}
	if len(partial) > 0 {
		return partial[0], nil
	}

	loc = &domain.Location{
		ID:        uuid.New(),
		Name:      normalized,
		Lat:       lat,
		Lon:       lon,
		CreatedAt: time.Now(),
	}
	err = s.schedule.CreateLocation(ctx, loc)
	if err == nil {
		s.log.InfoContext(ctx, "location created", slog.String("name", normalized))
		return loc, nil
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Concurrent create of the same name; re-read the winner.
		return s.schedule.GetLocationByNameFold(ctx, normalized)
	}
	return nil, err
}
