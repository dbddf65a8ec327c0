package checkin

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"eventpoints/internal/civil"
	"eventpoints/internal/model"
)

var ErrUnknownWindow = errors.New("unknown leaderboard window")

// Window selects which events count toward a leaderboard.
type Window string

const (
	WindowAll      Window = "all"
	WindowYear     Window = "year"
	WindowSemester Window = "semester"
)

// ParseWindow accepts all, year or semester. Empty means semester, which
// is what the dashboard opens on.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WindowSemester, nil
	case WindowAll, WindowYear, WindowSemester:
		return w, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownWindow, s)
	}
}

// Semester seasons start on the first of these civil months; Fall runs to
// the end of the year.
var seasons = []struct {
	name  string
	start time.Month
}{
	{"Spring", time.January},
	{"Summer", time.May},
	{"Fall", time.August},
}

// semesterIndex returns the season containing m and the month the next
// season starts in.
func semesterIndex(m time.Month) (int, time.Month) {
	i := len(seasons) - 1
	for i > 0 && m < seasons[i].start {
		i--
	}
	end := time.January // of the next year
	if i+1 < len(seasons) {
		end = seasons[i+1].start
	}
	return i, end
}

// Bounds returns the UTC bounds [start, end) of the window containing now,
// computed at civil midnights. bounded is false for WindowAll.
func (w Window) Bounds(zone *civil.Resolver, now time.Time) (start, end time.Time, bounded bool) {
	c := zone.UTCToCivil(now)
	var from, to civil.DateTime
	switch w {
	case WindowYear:
		from = civil.Date(c.Year, time.January, 1, 0, 0)
		to = civil.Date(c.Year+1, time.January, 1, 0, 0)
	case WindowSemester:
		i, endMonth := semesterIndex(c.Month)
		from = civil.Date(c.Year, seasons[i].start, 1, 0, 0)
		to = civil.Date(c.Year, endMonth, 1, 0, 0)
		if endMonth == time.January {
			to.Year++
		}
	default:
		return time.Time{}, time.Time{}, false
	}
	// Midnight on the first of a month always exists.
	start, _ = zone.CivilToUTC(from)
	end, _ = zone.CivilToUTC(to)
	return start, end, true
}

// Filter narrows the attendance a dashboard view counts.
type Filter struct {
	Window Window
	// Organization, when set, keeps only events run by it (case-insensitive).
	Organization string
}

// Select returns the attendance records whose event passes f. An
// attendance record is dated by its event, or by its check-in time when
// the event is not in events; it never matches an organization filter
// in that case.
func (f Filter) Select(zone *civil.Resolver, events []model.Event, attendance []model.Attendance, now time.Time) []model.Attendance {
	byID := make(map[int]model.Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}
	start, end, bounded := f.Window.Bounds(zone, now)
	org := strings.TrimSpace(f.Organization)

	out := make([]model.Attendance, 0, len(attendance))
	for _, a := range attendance {
		ev, known := byID[a.Event]
		if org != "" && (!known || !strings.EqualFold(ev.Organization, org)) {
			continue
		}
		when := a.CheckedInAt
		if known {
			when = ev.Date
		}
		if bounded && (when.Before(start) || !when.Before(end)) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FilteredLeaderboard is Leaderboard over the attendance f selects.
func FilteredLeaderboard(zone *civil.Resolver, events []model.Event, attendance []model.Attendance, now time.Time, f Filter) []Standing {
	return Leaderboard(f.Select(zone, events, attendance, now))
}

// Overview is attendance per event type per civil date. Each series has
// one count per entry in Dates.
type Overview struct {
	Dates  []string     `json:"dates"`
	Series []TypeSeries `json:"series"`
}

type TypeSeries struct {
	EventType        string `json:"event_type"`
	AttendanceCounts []int  `json:"attendance_counts"`
}

// UntypedEvents labels events without an event type.
const UntypedEvents = "Other"

// AttendanceOverview counts the attendance f selects, grouped by the event
// type and by the civil date of the event. Attendance for events not in
// events is skipped. Dates ascend; series are sorted by type.
func AttendanceOverview(zone *civil.Resolver, events []model.Event, attendance []model.Attendance, now time.Time, f Filter) Overview {
	byID := make(map[int]model.Event, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	counts := make(map[string]map[string]int)
	dateSet := make(map[string]bool)
	for _, a := range f.Select(zone, events, attendance, now) {
		ev, ok := byID[a.Event]
		if !ok {
			continue
		}
		typ := cmp.Or(strings.TrimSpace(ev.EventType), UntypedEvents)
		day := zone.UTCToCivil(ev.Date).Time().Format(time.DateOnly)
		if counts[typ] == nil {
			counts[typ] = make(map[string]int)
		}
		counts[typ][day]++
		dateSet[day] = true
	}

	ov := Overview{Dates: make([]string, 0, len(dateSet)), Series: make([]TypeSeries, 0, len(counts))}
	for day := range dateSet {
		ov.Dates = append(ov.Dates, day)
	}
	slices.Sort(ov.Dates)
	for typ, byDay := range counts {
		s := TypeSeries{EventType: typ, AttendanceCounts: make([]int, len(ov.Dates))}
		for i, day := range ov.Dates {
			s.AttendanceCounts[i] = byDay[day]
		}
		ov.Series = append(ov.Series, s)
	}
	slices.SortFunc(ov.Series, func(a, b TypeSeries) int { return cmp.Compare(a.EventType, b.EventType) })
	return ov
}
