package domain

import (
	"time"

	"github.com/google/uuid"
)

// Location is a node in the schedule graph.
type Location struct {
	ID        uuid.UUID
	Name      string
	NameTamil *string
	Lat       *float64
	Lon       *float64
	CreatedAt time.Time
}

// Bus is a scheduled service between two locations.
type Bus struct {
	ID             uuid.UUID
	Number         string
	Name           string
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	FromName       string
	ToName         string
	Departure      TimeOfDay
	Arrival        TimeOfDay
	CreatedAt      time.Time
}

// Stop is an intermediate halt of a bus, ordered along the route.
type Stop struct {
	ID         uuid.UUID
	BusID      uuid.UUID
	LocationID uuid.UUID
	Name       string
	Arrival    *TimeOfDay
	Departure  *TimeOfDay
	StopOrder  int
}

// DuplicateMatch is an advisory hit from the pre-submission duplicate
// check. Exactly one of BusID/RouteContributionID is set depending on
// whether the candidate is a verified bus or a still-pending contribution.
type DuplicateMatch struct {
	BusID               *uuid.UUID
	RouteContributionID *uuid.UUID
	BusNumber           string
	BusName             string
	Origin              string
	Destination         string
	Departure           TimeOfDay
	Confidence          int
	Type                MatchType
	Pending             bool
}
