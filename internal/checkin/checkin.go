// Package checkin resolves which event a walk-up check-in belongs to and
// which students may still check in to it.
package checkin

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"time"

	"eventpoints/internal/civil"
	"eventpoints/internal/model"
)

var (
	ErrNoEventsToday    = errors.New("no events scheduled for today")
	ErrAlreadyCheckedIn = errors.New("student already checked in")
	ErrUnknownStudent   = errors.New("no student with that A-Number")
)

// DefaultPoints is awarded when an event does not set its own value.
const DefaultPoints = 1

// TodaysEvents returns the events whose start falls on now's civil date,
// earliest first.
func TodaysEvents(zone *civil.Resolver, events []model.Event, now time.Time) []model.Event {
	start, end := zone.Today(now)
	out := make([]model.Event, 0)
	for _, ev := range events {
		if !ev.Date.Before(start) && ev.Date.Before(end) {
			out = append(out, ev)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// Closest picks the event a general check-in should go to: the next one
// starting at or after now, or the last one of the day once all have
// started.
func Closest(zone *civil.Resolver, events []model.Event, now time.Time) (model.Event, error) {
	today := TodaysEvents(zone, events, now)
	if len(today) == 0 {
		return model.Event{}, ErrNoEventsToday
	}
	for _, ev := range today {
		if !ev.Date.Before(now) {
			return ev, nil
		}
	}
	return today[len(today)-1], nil
}

// Split separates upcoming events (ascending) from past ones (most recent
// first).
func Split(events []model.Event, now time.Time) (upcoming, past []model.Event) {
	for _, ev := range events {
		if ev.HasPassed(now) {
			past = append(past, ev)
		} else {
			upcoming = append(upcoming, ev)
		}
	}
	slices.SortStableFunc(upcoming, func(a, b model.Event) int { return a.Date.Compare(b.Date) })
	slices.SortStableFunc(past, func(a, b model.Event) int { return b.Date.Compare(a.Date) })
	return upcoming, past
}

// ANumber derives a student's A-Number from their university email
// (a01234567@usu.edu -> A01234567).
func ANumber(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	return strings.ToUpper(local)
}

// FindByANumber looks a student up by A-Number, ignoring case.
func FindByANumber(students []model.Student, aNumber string) (model.Student, error) {
	want := strings.ToUpper(strings.TrimSpace(aNumber))
	if want == "" {
		return model.Student{}, ErrUnknownStudent
	}
	for _, s := range students {
		if ANumber(s.Email) == want {
			return s, nil
		}
	}
	return model.Student{}, ErrUnknownStudent
}

// CheckedIn reports whether studentID already has attendance for eventID.
func CheckedIn(attendance []model.Attendance, studentID, eventID int) bool {
	return slices.ContainsFunc(attendance, func(a model.Attendance) bool {
		return a.Event == eventID && a.Student.ID == studentID
	})
}

// Available returns the students without attendance for eventID that
// match term across first name, last name and email.
func Available(students []model.Student, attendance []model.Attendance, eventID int, term string) []model.Student {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Student, 0)
	for _, s := range students {
		if CheckedIn(attendance, s.ID, eventID) {
			continue
		}
		hay := strings.ToLower(s.FirstName + " " + s.LastName + " " + s.Email)
		if term != "" && !strings.Contains(hay, term) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Points is what a check-in to ev is worth.
func Points(ev model.Event) int {
	if ev.Points > 0 {
		return ev.Points
	}
	return DefaultPoints
}

// Request builds the attendance write for a student, refusing duplicates.
func Request(ev model.Event, student model.Student, attendance []model.Attendance) (model.AttendanceRequest, error) {
	if CheckedIn(attendance, student.ID, ev.ID) {
		return model.AttendanceRequest{}, ErrAlreadyCheckedIn
	}
	return model.AttendanceRequest{Student: student.ID, Event: ev.ID, Points: Points(ev)}, nil
}

// Standing is a student's point total.
type Standing struct {
	Student model.Student `json:"student"`
	Points  int           `json:"points"`
	Events  int           `json:"events"`
}

// Leaderboard totals attendance points per student, highest first, ties
// broken by last then first name.
func Leaderboard(attendance []model.Attendance) []Standing {
	byID := make(map[int]*Standing)
	for _, a := range attendance {
		st, ok := byID[a.Student.ID]
		if !ok {
			st = &Standing{Student: a.Student}
			byID[a.Student.ID] = st
		}
		st.Points += a.Points
		st.Events++
	}
	out := make([]Standing, 0, len(byID))
	for _, st := range byID {
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b Standing) int {
		return cmp.Or(
			cmp.Compare(b.Points, a.Points),
			cmp.Compare(a.Student.LastName, b.Student.LastName),
			cmp.Compare(a.Student.FirstName, b.Student.FirstName),
			cmp.Compare(a.Student.ID, b.Student.ID),
		)
	})
	return out
}
