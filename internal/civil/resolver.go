package civil

import (
	"errors"
	"fmt"
	"slices"
	"time"

	// Embed the zone database so conversions do not depend on the host.
	_ "time/tzdata"
)

// Offset is one UTC offset the civil zone can be in.
type Offset struct {
	Name    string `yaml:"name" json:"name"`
	Seconds int    `yaml:"utc_offset" json:"utc_offset"`
}

// Zone describes the single civil zone used for all date entry.
//
// Offsets is the candidate list tried when turning a civil value into an
// instant, in preference order. The first entry is the standard-time
// offset and is also the fallback for wall-clock values that do not exist
// (the spring-forward gap).
type Zone struct {
	Name    string   `yaml:"name" json:"name"`
	Offsets []Offset `yaml:"offsets" json:"offsets"`
}

// DefaultZone is Mountain Time: MST before MDT.
func DefaultZone() Zone {
	return Zone{
		Name: "America/Denver",
		Offsets: []Offset{
			{Name: "MST", Seconds: -7 * 3600},
			{Name: "MDT", Seconds: -6 * 3600},
		},
	}
}

// Resolver converts between civil values in one fixed zone and UTC
// instants. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	zone Zone
	loc  *time.Location
}

// NewResolver loads the zone's rules and returns a Resolver for it.
func NewResolver(zone Zone) (*Resolver, error) {
	if zone.Name == "" {
		return nil, errors.New("civil: zone name is empty")
	}
	if len(zone.Offsets) == 0 {
		return nil, fmt.Errorf("civil: zone %s has no candidate offsets", zone.Name)
	}
	loc, err := time.LoadLocation(zone.Name)
	if err != nil {
		return nil, fmt.Errorf("civil: load zone %s: %w", zone.Name, err)
	}
	if err := checkOffsets(zone, loc); err != nil {
		return nil, err
	}
	return &Resolver{zone: zone, loc: loc}, nil
}

// ZoneFor builds a Zone for the named location with the offsets it uses
// this year and next, standard time first.
func ZoneFor(name string) (Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("civil: load zone %s: %w", name, err)
	}
	obs := observedOffsets(loc, time.Now())
	slices.SortStableFunc(obs, func(a, b observed) int {
		switch {
		case a.dst == b.dst:
			return 0
		case b.dst:
			return -1
		default:
			return 1
		}
	})
	zone := Zone{Name: name}
	for _, o := range obs {
		zone.Offsets = append(zone.Offsets, o.Offset)
	}
	return zone, nil
}

type observed struct {
	Offset
	dst bool
}

// observedOffsets samples loc at mid-winter and mid-summer of now's year
// and the following one.
func observedOffsets(loc *time.Location, now time.Time) []observed {
	var out []observed
	for _, year := range []int{now.Year(), now.Year() + 1} {
		for _, month := range []time.Month{time.January, time.July} {
			t := time.Date(year, month, 1, 12, 0, 0, 0, loc)
			name, secs := t.Zone()
			if slices.ContainsFunc(out, func(o observed) bool { return o.Seconds == secs }) {
				continue
			}
			out = append(out, observed{Offset: Offset{Name: name, Seconds: secs}, dst: t.IsDST()})
		}
	}
	return out
}

// checkOffsets requires the candidate list and the location's offsets to
// be the same set, compared by seconds.
func checkOffsets(zone Zone, loc *time.Location) error {
	obs := observedOffsets(loc, time.Now())
	for _, off := range zone.Offsets {
		if !slices.ContainsFunc(obs, func(o observed) bool { return o.Seconds == off.Seconds }) {
			return fmt.Errorf("%w: %s does not use offset %s (%+ds)", ErrZoneMismatch, zone.Name, off.Name, off.Seconds)
		}
	}
	for _, o := range obs {
		if !slices.ContainsFunc(zone.Offsets, func(off Offset) bool { return off.Seconds == o.Seconds }) {
			return fmt.Errorf("%w: %s uses offset %s (%+ds) missing from the candidate list", ErrZoneMismatch, zone.Name, o.Name, o.Seconds)
		}
	}
	return nil
}

// Zone returns the zone the resolver was built for.
func (r *Resolver) Zone() Zone {
	return r.zone
}

// Location exposes the loaded zone for formatting instants.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// UTCToCivil returns the wall-clock fields of u in the civil zone.
func (r *Resolver) UTCToCivil(u time.Time) DateTime {
	return FromTime(u.In(r.loc))
}

// CivilToUTC returns the instant at which the civil zone's clocks read c.
//
// Each candidate offset is tried in order and the first one whose forward
// conversion reproduces c wins, so a repeated fall-back hour resolves to
// the standard offset. A skipped spring-forward value matches nothing and
// is converted with the standard offset.
func (r *Resolver) CivilToUTC(c DateTime) (time.Time, error) {
	if err := c.Validate(); err != nil {
		return time.Time{}, err
	}
	wall := c.Time()
	for _, off := range r.zone.Offsets {
		u := wall.Add(-time.Duration(off.Seconds) * time.Second)
		if r.UTCToCivil(u) == c {
			return u, nil
		}
	}
	return wall.Add(-time.Duration(r.zone.Offsets[0].Seconds) * time.Second), nil
}

// NextTopOfHour returns the civil start of the hour following now.
func (r *Resolver) NextTopOfHour(now time.Time) DateTime {
	c := r.UTCToCivil(now)
	next := time.Date(c.Year, c.Month, c.Day, c.Hour+1, 0, 0, 0, time.UTC)
	return FromTime(next)
}

// EndOfYear returns December 31, 23:59 of c's year.
func (r *Resolver) EndOfYear(c DateTime) DateTime {
	return EndOfYear(c)
}

// Today returns the UTC bounds [start, end) of the civil day containing now.
func (r *Resolver) Today(now time.Time) (start, end time.Time) {
	c := r.UTCToCivil(now)
	midnight := DateTime{Year: c.Year, Month: c.Month, Day: c.Day}
	// Midnight is always a valid value, so the errors cannot occur.
	start, _ = r.CivilToUTC(midnight)
	end, _ = r.CivilToUTC(midnight.AddDays(1))
	return start, end
}

// SameDay reports whether instants a and b fall on the same civil date.
func (r *Resolver) SameDay(a, b time.Time) bool {
	ca, cb := r.UTCToCivil(a), r.UTCToCivil(b)
	return ca.Year == cb.Year && ca.Month == cb.Month && ca.Day == cb.Day
}
