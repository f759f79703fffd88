package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimingRecord is one departure extracted from a contribution and accepted
// into the timing store. Origin and destination are stored as display names;
// BusID is set once the record is promoted into (or linked to) the schedule
// graph.
type TimingRecord struct {
	ID             uuid.UUID
	Origin         string
	Destination    string
	Departure      TimeOfDay
	Period         DayPeriod
	Source         TimingSource
	ContributionID *uuid.UUID
	BusID          *uuid.UUID
	CreatedAt      time.Time
}

// TimingKey identifies a record for exact duplicate lookup. Names are
// case-folded so "Madurai" and "MADURAI" collide.
type TimingKey struct {
	Origin      string
	Destination string
	Departure   TimeOfDay
	Period      DayPeriod
}

// Key returns the exact-duplicate lookup key for the record.
func (r *TimingRecord) Key() TimingKey {
	return NewTimingKey(r.Origin, r.Destination, r.Departure, r.Period)
}

// NewTimingKey builds a normalized lookup key.
func NewTimingKey(origin, destination string, dep TimeOfDay, period DayPeriod) TimingKey {
	return TimingKey{
		Origin:      strings.ToLower(strings.TrimSpace(origin)),
		Destination: strings.ToLower(strings.TrimSpace(destination)),
		Departure:   dep,
		Period:      period,
	}
}

// SkippedTimingRecord is an append-only ledger entry explaining why a
// timing tuple from an approved contribution did not become a record.
type SkippedTimingRecord struct {
	ID               uuid.UUID
	ContributionID   uuid.UUID
	Origin           string
	Destination      string
	TimeText         string
	Departure        *TimeOfDay
	Period           DayPeriod
	Reason           SkipReason
	ExistingRecordID *uuid.UUID
	ProcessedBy      *uuid.UUID
	Notes            *string
	SkippedAt        time.Time
}
