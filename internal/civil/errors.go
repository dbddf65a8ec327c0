package civil

import (
	"errors"
	"fmt"
)

// ErrInvalidCivilDateTime is returned (wrapped) whenever calendar fields
// do not form a real date and time.
var ErrInvalidCivilDateTime = errors.New("invalid civil date/time")

// FieldError names the offending field of a malformed DateTime.
type FieldError struct {
	Field  string
	Value  int
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s %d %s", ErrInvalidCivilDateTime, e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidCivilDateTime
}

// ErrZoneMismatch is returned (wrapped) when a zone's candidate offsets do
// not match the offsets its location actually uses.
var ErrZoneMismatch = errors.New("zone offsets do not match location")
