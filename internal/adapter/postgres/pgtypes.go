package postgres

import (
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/perundhu/perundhu-backend/internal/domain"
)

// Conversion helpers shared by the repository packages.

// PgText converts a *string to pgtype.Text (nil -> NULL).
func PgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// TextPtr converts a pgtype.Text to *string (NULL -> nil).
func TextPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// PgFloat converts a *float64 to pgtype.Float8 (nil -> NULL).
func PgFloat(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

// FloatPtr converts a pgtype.Float8 to *float64 (NULL -> nil).
func FloatPtr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// PgTimeOfDay converts a domain TimeOfDay to a TIME column value.
func PgTimeOfDay(t domain.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t.TotalMinutes()) * 60 * 1_000_000, Valid: true}
}

// PgTimeOfDayPtr converts a *TimeOfDay to a TIME column value (nil -> NULL).
func PgTimeOfDayPtr(t *domain.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return PgTimeOfDay(*t)
}

// TimeOfDayValue converts a TIME column value back to a domain TimeOfDay.
// Sub-minute precision is dropped.
func TimeOfDayValue(t pgtype.Time) domain.TimeOfDay {
	mins := int(t.Microseconds / 60_000_000)
	return domain.TimeOfDay{Hour: mins / 60, Minute: mins % 60}
}

// TimeOfDayPtr converts a TIME column value to *TimeOfDay (NULL -> nil).
func TimeOfDayPtr(t pgtype.Time) *domain.TimeOfDay {
	if !t.Valid {
		return nil
	}
	v := TimeOfDayValue(t)
	return &v
}
