package recurrence

import (
	"fmt"
	"iter"
	"slices"

	"github.com/teambition/rrule-go"

	"eventpoints/internal/civil"
)

// DefaultMaxInstances is the usual cap for ExpandWithLimit. A daily
// series that runs a full year stays well below it.
const DefaultMaxInstances = 1000

// Sequence is a finite, ordered series of civil instances. It is lazy and
// can be iterated any number of times.
type Sequence struct {
	anchor civil.DateTime
	end    civil.DateTime
	rule   *rrule.RRule // nil for non-recurring rules
	count  int
}

// Expand validates rule and returns its instances. It fails only for an
// unknown type or an end boundary before the anchor.
func Expand(rule Rule) (Sequence, error) {
	return ExpandWithLimit(rule, 0)
}

// ExpandWithLimit is Expand with a cap on the number of instances. A
// series that would produce more than limit instances is rejected with
// ErrTooManyInstances rather than truncated. limit <= 0 means no cap.
func ExpandWithLimit(rule Rule, limit int) (Sequence, error) {
	if err := rule.Anchor.Validate(); err != nil {
		return Sequence{}, err
	}
	if !rule.Type.Valid() {
		return Sequence{}, fmt.Errorf("%w: unknown type %q", ErrInvalidRecurrenceRule, rule.Type)
	}
	if rule.Type == None {
		return Sequence{anchor: rule.Anchor, end: rule.Anchor, count: 1}, nil
	}

	end, err := rule.End.Resolve(rule.Anchor)
	if err != nil {
		return Sequence{}, err
	}
	if end.Before(rule.Anchor) {
		return Sequence{}, fmt.Errorf("%w: end %s is before anchor %s", ErrInvalidRecurrenceRule, end, rule.Anchor)
	}

	r, err := rrule.NewRRule(options(rule, end))
	if err != nil {
		return Sequence{}, fmt.Errorf("%w: %v", ErrInvalidRecurrenceRule, err)
	}

	seq := Sequence{anchor: rule.Anchor, end: end, rule: r}

	// Count once, up to any cap, so oversized series fail here and not
	// half-way through a caller's loop.
	next := r.Iterator()
	for {
		if _, ok := next(); !ok {
			break
		}
		seq.count++
		if limit > 0 && seq.count > limit {
			return Sequence{}, fmt.Errorf("%w: more than %d instances before %s", ErrTooManyInstances, limit, end)
		}
	}
	return seq, nil
}

// options builds the rrule for rule. Civil values are carried as UTC wall
// times so calendar stepping never sees a DST shift.
func options(rule Rule, end civil.DateTime) rrule.ROption {
	opt := rrule.ROption{
		Dtstart:  rule.Anchor.Time(),
		Until:    end.Time(),
		Interval: 1,
	}
	switch rule.Type {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Biweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case Monthly:
		opt.Freq = rrule.MONTHLY
		if rule.Anchor.Day > 28 {
			// Take the anchor day or, when the month is shorter, its
			// last day: the earliest of {day, -1} that exists.
			opt.Bymonthday = []int{rule.Anchor.Day, -1}
			opt.Bysetpos = []int{1}
		}
	}
	return opt
}

// All yields the instances in order, starting with the anchor.
func (s Sequence) All() iter.Seq[civil.DateTime] {
	return func(yield func(civil.DateTime) bool) {
		if s.rule == nil {
			if s.count > 0 {
				yield(s.anchor)
			}
			return
		}
		next := s.rule.Iterator()
		for {
			t, ok := next()
			if !ok {
				return
			}
			if !yield(civil.FromTime(t)) {
				return
			}
		}
	}
}

// Collect returns all instances as a slice.
func (s Sequence) Collect() []civil.DateTime {
	return slices.Collect(s.All())
}

// Len is the number of instances.
func (s Sequence) Len() int { return s.count }

// Anchor is the first instance.
func (s Sequence) Anchor() civil.DateTime { return s.anchor }

// End is the resolved inclusive boundary. For a non-recurring rule it is
// the anchor itself.
func (s Sequence) End() civil.DateTime { return s.end }
