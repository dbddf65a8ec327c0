package civil

import (
	"fmt"
	"strings"
	"time"
)

// DateTime is a wall-clock moment with minute precision and no embedded
// zone. It is always interpreted against the Resolver's civil zone.
type DateTime struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
}

// Date is a shorthand constructor. It does not validate; call Validate or
// pass the value through a Resolver operation to have it checked.
func Date(year int, month time.Month, day, hour, minute int) DateTime {
	return DateTime{Year: year, Month: month, Day: day, Hour: hour, Minute: minute}
}

// FromTime takes the wall-clock fields of t in t's own location.
// Seconds and below are dropped.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Year:   t.Year(),
		Month:  t.Month(),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

// Time returns the wall-clock fields as a time.Time in UTC. The result is
// only meaningful for calendar arithmetic and ordering, never as an instant.
func (c DateTime) Time() time.Time {
	return time.Date(c.Year, c.Month, c.Day, c.Hour, c.Minute, 0, 0, time.UTC)
}

// DaysIn returns the number of days in the given month, honoring leap years.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Validate reports whether c is a well-formed Gregorian date and time.
// The returned error is a *FieldError wrapping ErrInvalidCivilDateTime.
func (c DateTime) Validate() error {
	switch {
	case c.Month < time.January || c.Month > time.December:
		return &FieldError{Field: "month", Value: int(c.Month), Reason: "must be 1-12"}
	case c.Day < 1 || c.Day > DaysIn(c.Year, c.Month):
		return &FieldError{
			Field:  "day",
			Value:  c.Day,
			Reason: fmt.Sprintf("must be 1-%d for %04d-%02d", DaysIn(c.Year, c.Month), c.Year, int(c.Month)),
		}
	case c.Hour < 0 || c.Hour > 23:
		return &FieldError{Field: "hour", Value: c.Hour, Reason: "must be 0-23"}
	case c.Minute < 0 || c.Minute > 59:
		return &FieldError{Field: "minute", Value: c.Minute, Reason: "must be 0-59"}
	}
	return nil
}

// AddDays moves c by n calendar days, keeping the wall-clock time.
func (c DateTime) AddDays(n int) DateTime {
	return FromTime(c.Time().AddDate(0, 0, n))
}

// EndOfYear returns December 31, 23:59 of c's year.
func EndOfYear(c DateTime) DateTime {
	return DateTime{Year: c.Year, Month: time.December, Day: 31, Hour: 23, Minute: 59}
}

// Compare returns -1, 0 or +1 depending on whether c is before, equal to or
// after o in civil order.
func (c DateTime) Compare(o DateTime) int {
	return c.Time().Compare(o.Time())
}

func (c DateTime) Before(o DateTime) bool { return c.Compare(o) < 0 }
func (c DateTime) After(o DateTime) bool  { return c.Compare(o) > 0 }

// String formats c the way HTML datetime-local inputs do: 2006-01-02T15:04.
func (c DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d", c.Year, int(c.Month), c.Day, c.Hour, c.Minute)
}

var parseLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads a civil value as produced by date / datetime-local form
// inputs. A bare date means midnight; seconds are accepted and dropped.
func Parse(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateTime{}, fmt.Errorf("%w: empty value", ErrInvalidCivilDateTime)
	}
	var lastErr error
	for _, layout := range parseLayouts {
		if len(s) != len(layout) {
			continue
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			lastErr = err
			continue
		}
		return FromTime(t), nil
	}
	if lastErr != nil {
		return DateTime{}, fmt.Errorf("%w: %q: %v", ErrInvalidCivilDateTime, s, lastErr)
	}
	return DateTime{}, fmt.Errorf("%w: unrecognized format %q", ErrInvalidCivilDateTime, s)
}

// MarshalText implements encoding.TextMarshaler.
func (c DateTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *DateTime) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
