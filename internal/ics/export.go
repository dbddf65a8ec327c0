// Package ics renders backend events as an iCalendar feed.
package ics

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventpoints/internal/model"
)

// DefaultDuration is used for DTEND since events only carry a start.
const DefaultDuration = time.Hour

// Feed describes the calendar wrapping the exported events.
type Feed struct {
	Name     string // X-WR-CALNAME
	Timezone string // X-WR-TIMEZONE, the civil zone name
	Domain   string // UID suffix
	Duration time.Duration
	// Now stamps DTSTAMP.
	Now time.Time
}

// UID is the stable iCalendar UID of an event.
func (f Feed) UID(ev model.Event) string {
	return fmt.Sprintf("event-%d@%s", ev.ID, cmp.Or(f.Domain, "eventpoints"))
}

// Calendar builds a VCALENDAR with one VEVENT per event, ordered by start.
// Times are written in UTC; X-WR-TIMEZONE tells clients which zone to
// display them in.
func (f Feed) Calendar(events []model.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventpoints//check-in events//EN")
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}
	if f.Timezone != "" {
		cal.SetXWRTimezone(f.Timezone)
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.Event) int {
		return cmp.Or(a.Date.Compare(b.Date), cmp.Compare(a.ID, b.ID))
	})

	dur := cmp.Or(f.Duration, DefaultDuration)
	stamp := f.Now
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, ev := range sorted {
		ve := cal.AddEvent(f.UID(ev))
		ve.SetDtStampTime(stamp.UTC())
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt.UTC())
		}
		ve.SetStartAt(ev.Date.UTC())
		ve.SetEndAt(ev.Date.UTC().Add(dur))
		ve.SetSummary(ev.Name)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if desc := description(ev); desc != "" {
			ve.SetDescription(desc)
		}
		if cats := categories(ev); cats != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, cats)
		}
		if ev.SeriesID != "" {
			ve.SetProperty(ical.ComponentPropertyRelatedTo, ev.SeriesID)
		}
	}
	return cal
}

// Write serializes the feed for events to w.
func (f Feed) Write(w io.Writer, events []model.Event) error {
	_, err := io.WriteString(w, f.Calendar(events).Serialize())
	return err
}

func description(ev model.Event) string {
	parts := make([]string, 0, 2)
	if d := strings.TrimSpace(ev.Description); d != "" {
		parts = append(parts, d)
	}
	if ev.Points > 0 {
		parts = append(parts, fmt.Sprintf("Points: %d", ev.Points))
	}
	return strings.Join(parts, "\n\n")
}

func categories(ev model.Event) string {
	cats := make([]string, 0, 2)
	for _, c := range []string{ev.Organization, ev.EventType} {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	return strings.Join(cats, ",")
}
