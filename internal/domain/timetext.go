package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock departure time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String renders the canonical 24-hour "HH:MM" form. Parsing this form
// with ParseTimeText yields the same value back.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// TotalMinutes returns minutes since midnight.
func (t TimeOfDay) TotalMinutes() int {
	return t.Hour*60 + t.Minute
}

// AddMinutes returns the time shifted forward, wrapping past midnight.
func (t TimeOfDay) AddMinutes(m int) TimeOfDay {
	total := (t.TotalMinutes() + m) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}
	return TimeOfDay{Hour: total / 60, Minute: total % 60}
}

// MinutesApart returns the absolute distance in minutes between two times.
func MinutesApart(a, b TimeOfDay) int {
	d := a.TotalMinutes() - b.TotalMinutes()
	if d < 0 {
		d = -d
	}
	return d
}

// Period classifies the time into its schedule bucket:
// morning [05:00, 12:00), afternoon [12:00, 17:00), night [17:00, 05:00).
func (t TimeOfDay) Period() DayPeriod {
	switch {
	case t.Hour >= 5 && t.Hour < 12:
		return PeriodMorning
	case t.Hour >= 12 && t.Hour < 17:
		return PeriodAfternoon
	default:
		return PeriodNight
	}
}

// ParseTimeText converts a free-form time string from a timing board into
// a TimeOfDay. Accepted shapes include "6.30", "06:30", "6 30 PM", "1830",
// "630" and bare hours like "7". AM/PM markers adjust the hour before
// validation. Returns ErrInvalidTimeFormat when the text cannot be read
// as a valid 24-hour time.
func ParseTimeText(text string) (TimeOfDay, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return TimeOfDay{}, fmt.Errorf("%w: empty", ErrInvalidTimeFormat)
	}

	pm := strings.Contains(s, "PM")
	am := strings.Contains(s, "AM")
	s = strings.ReplaceAll(s, "PM", "")
	s = strings.ReplaceAll(s, "AM", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
	}

	hourPart, minutePart, sep := splitOnSeparator(s)
	if hourPart == "" {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
	}

	var hour, minute int
	var err error
	if !sep {
		// No separator: treat 3-4 digit runs as HMM/HHMM, shorter as a bare hour.
		switch {
		case len(hourPart) <= 2:
			hour, err = strconv.Atoi(hourPart)
		case len(hourPart) <= 4:
			hour, err = strconv.Atoi(hourPart[:len(hourPart)-2])
			if err == nil {
				minute, err = strconv.Atoi(hourPart[len(hourPart)-2:])
			}
		default:
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
		}
	} else {
		hour, err = strconv.Atoi(hourPart)
		if err == nil && minutePart != "" {
			minute, err = strconv.Atoi(minutePart)
		}
	}
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
	}

	if pm && hour != 12 {
		hour += 12
	}
	if am && hour == 12 {
		hour = 0
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// splitOnSeparator splits at the first non-digit rune. The separator run
// itself is discarded and only the digit run after it is kept.
func splitOnSeparator(s string) (hour, minute string, found bool) {
	for i, r := range s {
		if r < '0' || r > '9' {
			rest := s[i:]
			j := strings.IndexFunc(rest, func(r rune) bool { return r >= '0' && r <= '9' })
			if j < 0 {
				return s[:i], "", true
			}
			rest = rest[j:]
			if k := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); k >= 0 {
				rest = rest[:k]
			}
			return s[:i], rest, true
		}
	}
	return s, "", false
}

// BucketTimes distributes raw time strings into the three schedule buckets.
// A string that does not parse is placed in every bucket so it is never
// dropped before review. The final decision happens at integration, where
// such strings land in the skip ledger.
func BucketTimes(times []string) (morning, afternoon, night []string) {
	for _, raw := range times {
		t, err := ParseTimeText(raw)
		if err != nil {
			morning = append(morning, raw)
			afternoon = append(afternoon, raw)
			night = append(night, raw)
			continue
		}
		switch t.Period() {
		case PeriodMorning:
			morning = append(morning, raw)
		case PeriodAfternoon:
			afternoon = append(afternoon, raw)
		default:
			night = append(night, raw)
		}
	}
	return morning, afternoon, night
}
