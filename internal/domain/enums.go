package domain

// ImageStatus represents the review state of an image contribution.
type ImageStatus string

const (
	ImageStatusPending    ImageStatus = "PENDING"
	ImageStatusProcessing ImageStatus = "PROCESSING"
	ImageStatusApproved   ImageStatus = "APPROVED"
	ImageStatusRejected   ImageStatus = "REJECTED"
)

func (s ImageStatus) String() string { return string(s) }

func (s ImageStatus) IsValid() bool {
	switch s {
	case ImageStatusPending, ImageStatusProcessing, ImageStatusApproved, ImageStatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ImageStatus) IsTerminal() bool {
	return s == ImageStatusApproved || s == ImageStatusRejected
}

// RouteStatus represents the review state of a manually entered route contribution.
type RouteStatus string

const (
	RouteStatusPending  RouteStatus = "PENDING"
	RouteStatusApproved RouteStatus = "APPROVED"
	RouteStatusRejected RouteStatus = "REJECTED"
)

func (s RouteStatus) String() string { return string(s) }

func (s RouteStatus) IsValid() bool {
	switch s {
	case RouteStatusPending, RouteStatusApproved, RouteStatusRejected:
		return true
	}
	return false
}

func (s RouteStatus) IsTerminal() bool {
	return s == RouteStatusApproved || s == RouteStatusRejected
}

// DayPeriod is the coarse schedule bucket a departure belongs to.
type DayPeriod string

const (
	PeriodMorning   DayPeriod = "MORNING"
	PeriodAfternoon DayPeriod = "AFTERNOON"
	PeriodNight     DayPeriod = "NIGHT"
)

// Periods lists all day periods in display order.
var Periods = []DayPeriod{PeriodMorning, PeriodAfternoon, PeriodNight}

func (p DayPeriod) String() string { return string(p) }

func (p DayPeriod) IsValid() bool {
	switch p {
	case PeriodMorning, PeriodAfternoon, PeriodNight:
		return true
	}
	return false
}

// TimingSource records how a timing record entered the store.
type TimingSource string

const (
	SourceOCRExtracted     TimingSource = "OCR_EXTRACTED"
	SourceManuallyVerified TimingSource = "MANUALLY_VERIFIED"
)

func (s TimingSource) String() string { return string(s) }

func (s TimingSource) IsValid() bool {
	switch s {
	case SourceOCRExtracted, SourceManuallyVerified:
		return true
	}
	return false
}

// SkipReason explains why a timing tuple was diverted to the skip ledger.
type SkipReason string

const (
	SkipDuplicateExact    SkipReason = "DUPLICATE_EXACT"
	SkipInvalidTime       SkipReason = "INVALID_TIME"
	SkipIntegrationFailed SkipReason = "INTEGRATION_FAILED"
)

func (r SkipReason) String() string { return string(r) }

func (r SkipReason) IsValid() bool {
	switch r {
	case SkipDuplicateExact, SkipInvalidTime, SkipIntegrationFailed:
		return true
	}
	return false
}

// MatchType classifies how a duplicate candidate was matched.
type MatchType string

const (
	MatchExactNumber   MatchType = "EXACT_NUMBER"
	MatchTimeProximity MatchType = "TIME_PROXIMITY"
	MatchFuzzyLocation MatchType = "FUZZY_LOCATION"
)

func (m MatchType) String() string { return string(m) }

func (m MatchType) IsValid() bool {
	switch m {
	case MatchExactNumber, MatchTimeProximity, MatchFuzzyLocation:
		return true
	}
	return false
}
