package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RouteContribution is a manually entered bus route awaiting review.
type RouteContribution struct {
	ID                uuid.UUID
	BusNumber         *string
	BusName           *string
	Origin            string
	Destination       string
	OriginLat         *float64
	OriginLon         *float64
	DestinationLat    *float64
	DestinationLon    *float64
	DepartureText     string
	ArrivalText       *string
	Stops             []StopContribution
	Status            RouteStatus
	ValidationMessage *string
	SubmittedBy       string
	SubmittedAt       time.Time
	ProcessedBy       *uuid.UUID
	ProcessedAt       *time.Time
}

// StopContribution is an intermediate stop on a contributed route.
type StopContribution struct {
	Name          string  `json:"name"`
	NameTamil     *string `json:"nameTamil,omitempty"`
	ArrivalText   *string `json:"arrivalTime,omitempty"`
	DepartureText *string `json:"departureTime,omitempty"`
	Order         int     `json:"order"`
}

// Approve settles the contribution. Valid only from PENDING.
func (r *RouteContribution) Approve(by uuid.UUID, now time.Time) error {
	if r.Status != RouteStatusPending {
		return fmt.Errorf("%w: contribution already %s", ErrConflict, r.Status)
	}
	r.Status = RouteStatusApproved
	r.ProcessedBy = &by
	r.ProcessedAt = &now
	return nil
}

// Reject settles the contribution with a reason. Valid only from PENDING.
func (r *RouteContribution) Reject(by uuid.UUID, reason string, now time.Time) error {
	if r.Status != RouteStatusPending {
		return fmt.Errorf("%w: contribution already %s", ErrConflict, r.Status)
	}
	if reason == "" {
		return NewValidationError("reason", "rejection reason is required")
	}
	r.Status = RouteStatusRejected
	r.ValidationMessage = &reason
	r.ProcessedBy = &by
	r.ProcessedAt = &now
	return nil
}
