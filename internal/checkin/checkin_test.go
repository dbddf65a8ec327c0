package checkin

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpoints/internal/civil"
	"eventpoints/internal/model"
)

func denver(t *testing.T) *civil.Resolver {
	t.Helper()
	r, err := civil.NewResolver(civil.DefaultZone())
	require.NoError(t, err)
	return r
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ids(events []model.Event) []int {
	out := make([]int, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

// Denver is UTC-6 in September.
var september = []model.Event{
	{ID: 1, Name: "Yesterday evening", Date: at("2024-09-11T01:00:00Z")}, // Sep 10 19:00
	{ID: 2, Name: "Evening talk", Date: at("2024-09-12T01:00:00Z")},      // Sep 11 19:00
	{ID: 3, Name: "Lunch", Date: at("2024-09-11T18:00:00Z")},             // Sep 11 12:00
	{ID: 4, Name: "Breakfast", Date: at("2024-09-11T14:00:00Z")},         // Sep 11 08:00
	{ID: 5, Name: "Tomorrow", Date: at("2024-09-12T06:00:00Z")},          // Sep 12 00:00
}

func TestTodaysEvents(t *testing.T) {
	r := denver(t)
	got := TodaysEvents(r, september, at("2024-09-11T20:00:00Z"))
	assert.Equal(t, []int{4, 3, 2}, ids(got))

	// 03:00 UTC on the 12th is still the 11th in Denver.
	got = TodaysEvents(r, september, at("2024-09-12T03:00:00Z"))
	assert.Equal(t, []int{4, 3, 2}, ids(got))
}

func TestClosest(t *testing.T) {
	r := denver(t)

	tests := []struct {
		name string
		now  string
		want int
	}{
		{"before the first event", "2024-09-11T12:00:00Z", 4},
		{"exactly at an event start", "2024-09-11T18:00:00Z", 3},
		{"between events", "2024-09-11T18:30:00Z", 2},
		{"after the last event", "2024-09-12T04:00:00Z", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Closest(r, september, at(tt.now))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.ID)
		})
	}

	_, err := Closest(r, september, at("2024-09-20T18:00:00Z"))
	assert.True(t, errors.Is(err, ErrNoEventsToday))
}

func TestSplit(t *testing.T) {
	upcoming, past := Split(september, at("2024-09-11T18:00:00Z"))
	assert.Equal(t, []int{2, 5}, ids(upcoming))
	assert.Equal(t, []int{3, 4, 1}, ids(past))
}

var students = []model.Student{
	{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "a01234567@usu.edu"},
	{ID: 2, FirstName: "Alan", LastName: "Turing", Email: "A07654321@usu.edu"},
	{ID: 3, FirstName: "Grace", LastName: "Hopper", Email: "a01111111@usu.edu"},
}

func TestANumber(t *testing.T) {
	assert.Equal(t, "A01234567", ANumber("a01234567@usu.edu"))
	assert.Equal(t, "A01234567", ANumber(" a01234567@usu.edu "))
	assert.Equal(t, "NOATSIGN", ANumber("noatsign"))

	s, err := FindByANumber(students, "a07654321")
	require.NoError(t, err)
	assert.Equal(t, 2, s.ID)

	_, err = FindByANumber(students, "A99999999")
	assert.True(t, errors.Is(err, ErrUnknownStudent))
	_, err = FindByANumber(students, "  ")
	assert.True(t, errors.Is(err, ErrUnknownStudent))
}

func TestAvailable(t *testing.T) {
	attendance := []model.Attendance{
		{ID: 10, Student: students[0], Event: 7},
		{ID: 11, Student: students[1], Event: 8},
	}

	got := Available(students, attendance, 7, "")
	assert.Equal(t, []model.Student{students[1], students[2]}, got)

	got = Available(students, attendance, 7, "HOPPER")
	assert.Equal(t, []model.Student{students[2]}, got)

	got = Available(students, attendance, 7, "a0765")
	assert.Equal(t, []model.Student{students[1]}, got)

	got = Available(students, attendance, 7, "lovelace")
	assert.Empty(t, got)
}

func TestRequest(t *testing.T) {
	attendance := []model.Attendance{{Student: students[0], Event: 7}}

	_, err := Request(model.Event{ID: 7, Points: 3}, students[0], attendance)
	assert.True(t, errors.Is(err, ErrAlreadyCheckedIn))

	req, err := Request(model.Event{ID: 7, Points: 3}, students[1], attendance)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceRequest{Student: 2, Event: 7, Points: 3}, req)

	req, err = Request(model.Event{ID: 9}, students[0], attendance)
	require.NoError(t, err)
	assert.Equal(t, DefaultPoints, req.Points)
}

func TestLeaderboard(t *testing.T) {
	attendance := []model.Attendance{
		{Student: students[0], Event: 1, Points: 2},
		{Student: students[1], Event: 1, Points: 2},
		{Student: students[0], Event: 2, Points: 1},
		{Student: students[2], Event: 2, Points: 3},
	}
	board := Leaderboard(attendance)
	require.Len(t, board, 3)

	// Hopper and Lovelace tie on 3 points; Hopper sorts first by last name.
	assert.Equal(t, 3, board[0].Student.ID)
	assert.Equal(t, 1, board[1].Student.ID)
	assert.Equal(t, 3, board[1].Points)
	assert.Equal(t, 2, board[1].Events)
	assert.Equal(t, 2, board[2].Student.ID)
}
