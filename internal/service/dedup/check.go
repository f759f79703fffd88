package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// Confidence scoring. An identifier match is certain; a route plus time
// match starts at the base and earns up to the proximity bonus as the
// minute delta shrinks; a fuzzy name match pays the discount.
const (
	exactNumberConfidence = 100
	timeProximityBase     = 50
	timeProximityBonus    = 25
	fuzzyDiscount         = 20
)

// Soft pre-submission checks scan at most this many pending contributions.
const pendingScanLimit = 200

// CheckInput carries the fields of a contribution-to-be for the soft check.
type CheckInput struct {
	Origin      string
	Destination string
	TimeText    string
	BusNumber   *string
}

// CheckDuplicates returns potential duplicates of the proposed route,
// ordered by confidence, highest first. Matches below the configured
// confidence floor are dropped. The check is advisory and never blocks
// a submission; an unparsable time only disables time-based matching.
func (s *Service) CheckDuplicates(ctx context.Context, in CheckInput) ([]domain.DuplicateMatch, error) {
	if in.Origin == "" || in.Destination == "" {
		return nil, domain.NewValidationError("origin", "origin and destination are required")
	}

	var departure *domain.TimeOfDay
	if t, err := domain.ParseTimeText(in.TimeText); err == nil {
		departure = &t
	}

	buses, err := s.candidateBuses(ctx, in.Origin, in.Destination)
	if err != nil {
		return nil, err
	}

	matches := make([]domain.DuplicateMatch, 0, len(buses))
	for _, bus := range buses {
		if m, ok := s.scoreBus(bus, in, departure); ok {
			matches = append(matches, m)
		}
	}

	pendingMatches, err := s.checkPending(ctx, in, departure)
	if err != nil {
		return nil, err
	}
	matches = append(matches, pendingMatches...)

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	s.log.DebugContext(ctx, "duplicate check",
		slog.String("origin", in.Origin),
		slog.String("destination", in.Destination),
		slog.Int("matches", len(matches)),
	)

	return matches, nil
}

// scoreBus evaluates one candidate bus against the proposed route.
func (s *Service) scoreBus(bus *domain.Bus, in CheckInput, departure *domain.TimeOfDay) (domain.DuplicateMatch, bool) {
	match := domain.DuplicateMatch{
		BusID:       &bus.ID,
		BusNumber:   bus.Number,
		BusName:     bus.Name,
		Origin:      bus.FromName,
		Destination: bus.ToName,
		Departure:   bus.Departure,
	}

	if in.BusNumber != nil && busNumbersEqual(bus.Number, *in.BusNumber) &&
		namesEqual(bus.FromName, in.Origin) && namesEqual(bus.ToName, in.Destination) {
		match.Type = domain.MatchExactNumber
		match.Confidence = exactNumberConfidence
		return match, true
	}

	confidence, matched := s.scoreRoute(bus.FromName, bus.ToName, bus.Departure, in, departure)
	if !matched {
		return domain.DuplicateMatch{}, false
	}
	match.Confidence = confidence
	if namesEqual(bus.FromName, in.Origin) && namesEqual(bus.ToName, in.Destination) {
		match.Type = domain.MatchTimeProximity
	} else {
		match.Type = domain.MatchFuzzyLocation
	}
	return match, confidence >= s.cfg.MinConfidence
}

// scoreRoute computes the time-proximity confidence for a candidate whose
// endpoints at least fuzzily match, applying the fuzzy discount when the
// names are not exactly equal.
func (s *Service) scoreRoute(fromName, toName string, busDeparture domain.TimeOfDay, in CheckInput, departure *domain.TimeOfDay) (int, bool) {
	exact := namesEqual(fromName, in.Origin) && namesEqual(toName, in.Destination)
	if !exact && !(s.namesMatch(fromName, in.Origin) && s.namesMatch(toName, in.Destination)) {
		return 0, false
	}
	if departure == nil {
		return 0, false
	}

	window := int(s.cfg.TimeWindow.Minutes())
	delta := domain.MinutesApart(busDeparture, *departure)
	if delta > window {
		return 0, false
	}

	confidence := timeProximityBase
	if window > 0 {
		confidence += timeProximityBonus * (window - delta) / window
	}
	if !exact {
		confidence -= fuzzyDiscount
	}
	return confidence, true
}

// checkPending scores still-pending manual contributions so two users
// submitting the same route see each other before an admin does.
func (s *Service) checkPending(ctx context.Context, in CheckInput, departure *domain.TimeOfDay) ([]domain.DuplicateMatch, error) {
	pending, _, err := s.pending.ListByStatus(ctx, domain.RouteStatusPending, pendingScanLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("list pending contributions: %w", err)
	}

	var matches []domain.DuplicateMatch
	for _, rc := range pending {
		rcDeparture, err := domain.ParseTimeText(rc.DepartureText)
		if err != nil {
			continue
		}

		match := domain.DuplicateMatch{
			RouteContributionID: &rc.ID,
			Origin:              rc.Origin,
			Destination:         rc.Destination,
			Departure:           rcDeparture,
			Pending:             true,
		}
		if rc.BusNumber != nil {
			match.BusNumber = *rc.BusNumber
		}
		if rc.BusName != nil {
			match.BusName = *rc.BusName
		}

		if in.BusNumber != nil && rc.BusNumber != nil && busNumbersEqual(*rc.BusNumber, *in.BusNumber) &&
			namesEqual(rc.Origin, in.Origin) && namesEqual(rc.Destination, in.Destination) {
			match.Type = domain.MatchExactNumber
			match.Confidence = exactNumberConfidence
			matches = append(matches, match)
			continue
		}

		confidence, matched := s.scoreRoute(rc.Origin, rc.Destination, rcDeparture, in, departure)
		if !matched || confidence < s.cfg.MinConfidence {
			continue
		}
		match.Confidence = confidence
		if namesEqual(rc.Origin, in.Origin) && namesEqual(rc.Destination, in.Destination) {
			match.Type = domain.MatchTimeProximity
		} else {
			match.Type = domain.MatchFuzzyLocation
		}
		matches = append(matches, match)
	}
	return matches, nil
}
