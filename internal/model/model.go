package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Event is an event record as stored by the backend. Dates are UTC
// instants; civil conversion happens at the edges.
type Event struct {
	ID           int    `json:"id,omitempty"`
	Organization string `json:"organization"`
	EventType    string `json:"event_type"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Points       int    `json:"points"`

	Date time.Time `json:"date"`

	IsRecurring       bool       `json:"is_recurring"`
	RecurrenceType    string     `json:"recurrence_type"`
	RecurrenceEndDate *time.Time `json:"recurrence_end_date,omitempty"`

	// ParentEvent links a generated instance to the first event of its series.
	ParentEvent *int `json:"parent_event,omitempty"`
	// SeriesID groups all instances created from one form submission.
	SeriesID string `json:"series_id,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero"`
}

// HasPassed reports whether the event started at or before now.
func (e Event) HasPassed(now time.Time) bool {
	return !e.Date.After(now)
}

// Matches is the case-insensitive search used by event listings.
func (e Event) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range []string{e.Name, e.Location, e.Organization, e.EventType} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// Student is a student record.
type Student struct {
	ID          int    `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	TotalPoints int    `json:"total_points"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Attendance is one check-in. The backend nests the student record on
// reads and expects a bare ID on writes (see AttendanceRequest).
type Attendance struct {
	ID          int       `json:"id"`
	Student     Student   `json:"student"`
	Event       int       `json:"event"`
	Points      int       `json:"points"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// AttendanceRequest is the write form of Attendance.
type AttendanceRequest struct {
	Student int `json:"student"`
	Event   int `json:"event"`
	Points  int `json:"points"`
}

// UnmarshalJSON accepts the student either nested or as a bare ID, which
// is what the backend returns from a create.
func (a *Attendance) UnmarshalJSON(data []byte) error {
	type plain Attendance
	var raw struct {
		plain
		Student json.RawMessage `json:"student"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Attendance(raw.plain)
	a.Student = Student{}
	switch s := bytes.TrimSpace(raw.Student); {
	case len(s) == 0 || bytes.Equal(s, []byte("null")):
	case s[0] == '{':
		return json.Unmarshal(s, &a.Student)
	default:
		return json.Unmarshal(s, &a.Student.ID)
	}
	return nil
}
