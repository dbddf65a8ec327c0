package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"eventpoints/internal/civil"
)

var (
	// ErrInvalidRecurrenceRule is returned (wrapped) for unknown recurrence
	// types and end boundaries before the anchor.
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

	// ErrTooManyInstances is returned by ExpandWithLimit when a valid rule
	// produces more instances than the caller allows.
	ErrTooManyInstances = errors.New("too many recurrence instances")
)

// Type is how often an event repeats. The string values match the
// backend's recurrence_type field.
type Type string

const (
	None     Type = "none"
	Daily    Type = "daily"
	Weekly   Type = "weekly"
	Biweekly Type = "biweekly"
	Monthly  Type = "monthly"
)

// ParseType maps a backend/form value to a Type. The empty string means None.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return None, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRecurrenceRule, s)
	}
	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case None, Daily, Weekly, Biweekly, Monthly:
		return true
	}
	return false
}

// Label is the human-readable name used in event listings.
func (t Type) Label() string {
	switch t {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case Biweekly:
		return "Every 2 Weeks"
	case Monthly:
		return "Monthly"
	}
	return "No Recurrence"
}

// EndKind selects how the last permitted instance is determined.
type EndKind int

const (
	// EndAtYearEnd stops at December 31, 23:59 of the anchor's year.
	// It is the zero value because a recurring event without an end date
	// runs to the end of the year.
	EndAtYearEnd EndKind = iota
	EndAtExplicit
	EndOneYearOut
)

// EndPolicy is the end boundary of a Rule.
type EndPolicy struct {
	Kind EndKind
	At   civil.DateTime // only for EndAtExplicit
}

func ExplicitEnd(at civil.DateTime) EndPolicy { return EndPolicy{Kind: EndAtExplicit, At: at} }
func EndOfYear() EndPolicy                    { return EndPolicy{Kind: EndAtYearEnd} }
func OneYearOut() EndPolicy                   { return EndPolicy{Kind: EndOneYearOut} }

// ParseEndPolicy reads the API form: kind is "explicit", "end_of_year" or
// "one_year_out"; at is only read for "explicit". An empty kind with a
// non-empty at is treated as explicit, and both empty as end of year. A
// bare date covers that whole day.
func ParseEndPolicy(kind, at string) (EndPolicy, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" && strings.TrimSpace(at) != "" {
		kind = "explicit"
	}
	switch kind {
	case "", "end_of_year":
		return EndOfYear(), nil
	case "one_year_out":
		return OneYearOut(), nil
	case "explicit":
		at = strings.TrimSpace(at)
		c, err := civil.Parse(at)
		if err != nil {
			return EndPolicy{}, err
		}
		if len(at) == len(time.DateOnly) {
			c.Hour, c.Minute = 23, 59
		}
		return ExplicitEnd(c), nil
	}
	return EndPolicy{}, fmt.Errorf("%w: unknown end policy %q", ErrInvalidRecurrenceRule, kind)
}

// Resolve returns the inclusive end boundary for a series anchored at anchor.
func (p EndPolicy) Resolve(anchor civil.DateTime) (civil.DateTime, error) {
	switch p.Kind {
	case EndAtYearEnd:
		return civil.EndOfYear(anchor), nil
	case EndOneYearOut:
		return anchor.AddDays(365), nil
	case EndAtExplicit:
		if err := p.At.Validate(); err != nil {
			return civil.DateTime{}, err
		}
		return p.At, nil
	}
	return civil.DateTime{}, fmt.Errorf("%w: unknown end policy %d", ErrInvalidRecurrenceRule, p.Kind)
}

// Rule expands one anchor event into a series.
type Rule struct {
	Type   Type
	Anchor civil.DateTime
	End    EndPolicy
}
