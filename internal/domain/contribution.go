package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReviewConfidenceThreshold is the extraction confidence below which a
// contribution is flagged for manual review.
const ReviewConfidenceThreshold = 0.7

// ImageContribution is a photographed timing board submitted for review.
type ImageContribution struct {
	ID                   uuid.UUID
	SubmittedBy          string
	OriginLocation       string
	OriginLocationTamil  *string
	OriginLat            *float64
	OriginLon            *float64
	ImageURL             string
	ThumbnailURL         *string
	Description          *string
	Status               ImageStatus
	ExtractedTimings     []ExtractedTiming
	OCRConfidence        *float64
	RequiresManualReview bool
	ValidationMessage    *string
	ProcessedBy          *uuid.UUID
	ProcessedAt          *time.Time
	CreatedRecords       int
	MergedRecords        int
	SubmittedAt          time.Time
}

// ExtractedTiming holds the departures read off the board for one
// destination, split into day-period buckets.
type ExtractedTiming struct {
	ID               uuid.UUID
	Destination      string
	DestinationTamil *string
	Morning          []string
	Afternoon        []string
	Night            []string
}

// IsEmpty reports whether the timing carries no departure at all.
func (t ExtractedTiming) IsEmpty() bool {
	return len(t.Morning) == 0 && len(t.Afternoon) == 0 && len(t.Night) == 0
}

// Bucket returns the time strings for the given period.
func (t ExtractedTiming) Bucket(p DayPeriod) []string {
	switch p {
	case PeriodMorning:
		return t.Morning
	case PeriodAfternoon:
		return t.Afternoon
	default:
		return t.Night
	}
}

// HasTimings reports whether any destination carries at least one departure.
func (c *ImageContribution) HasTimings() bool {
	for _, t := range c.ExtractedTimings {
		if !t.IsEmpty() {
			return true
		}
	}
	return false
}

// StartProcessing moves the contribution into PROCESSING for extraction.
// Only a PENDING contribution may start.
func (c *ImageContribution) StartProcessing() error {
	if c.Status != ImageStatusPending {
		return fmt.Errorf("%w: cannot start processing from %s", ErrConflict, c.Status)
	}
	c.Status = ImageStatusProcessing
	return nil
}

// RevertToPending returns a PROCESSING contribution to PENDING after a
// failed extraction, recording the failure message for the reviewer.
func (c *ImageContribution) RevertToPending(message string) error {
	if c.Status != ImageStatusProcessing {
		return fmt.Errorf("%w: cannot revert from %s", ErrConflict, c.Status)
	}
	c.Status = ImageStatusPending
	c.ValidationMessage = &message
	return nil
}

// ApplyExtraction replaces the extracted timings with the gateway result.
// Confidence is clamped to [0, 1] and the manual-review flag is derived
// from it. The contribution stays in PROCESSING awaiting review.
func (c *ImageContribution) ApplyExtraction(timings []ExtractedTiming, confidence float64) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	c.ExtractedTimings = timings
	c.OCRConfidence = &confidence
	c.RequiresManualReview = confidence < ReviewConfidenceThreshold
}

// ReplaceTimings overwrites the extracted timings wholesale with a
// reviewer's corrections.
func (c *ImageContribution) ReplaceTimings(timings []ExtractedTiming) error {
	if c.Status.IsTerminal() {
		return fmt.Errorf("%w: contribution already %s", ErrConflict, c.Status)
	}
	c.ExtractedTimings = timings
	return nil
}

// Approve settles the contribution. Approval requires at least one
// extracted departure and is valid from PENDING or PROCESSING.
func (c *ImageContribution) Approve(by uuid.UUID, now time.Time) error {
	if c.Status.IsTerminal() {
		return fmt.Errorf("%w: contribution already %s", ErrConflict, c.Status)
	}
	if !c.HasTimings() {
		return NewValidationError("extractedTimings", "cannot approve without extracted timings")
	}
	c.Status = ImageStatusApproved
	c.ProcessedBy = &by
	c.ProcessedAt = &now
	return nil
}

// Reject settles the contribution with a reason. Valid from any
// non-terminal state.
func (c *ImageContribution) Reject(by uuid.UUID, reason string, now time.Time) error {
	if c.Status.IsTerminal() {
		return fmt.Errorf("%w: contribution already %s", ErrConflict, c.Status)
	}
	if reason == "" {
		return NewValidationError("reason", "rejection reason is required")
	}
	c.Status = ImageStatusRejected
	c.ValidationMessage = &reason
	c.ProcessedBy = &by
	c.ProcessedAt = &now
	return nil
}
