package checkin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpoints/internal/model"
)

var dashboardEvents = []model.Event{
	{ID: 1, Organization: "ASC", EventType: "Workshop", Date: at("2023-11-10T01:00:00Z")}, // Nov 9 2023 18:00
	{ID: 2, Organization: "ASC", EventType: "Workshop", Date: at("2024-03-01T01:00:00Z")}, // Feb 29 18:00
	{ID: 3, Organization: "SOC", EventType: "Social", Date: at("2024-09-11T01:00:00Z")},   // Sep 10 19:00
	{ID: 4, Organization: "ASC", Date: at("2024-09-12T01:00:00Z")},                        // Sep 11 19:00
	{ID: 5, Organization: "ASC", EventType: "Workshop", Date: at("2024-08-01T05:30:00Z")}, // Jul 31 23:30
}

var dashboardAttendance = []model.Attendance{
	{Student: students[0], Event: 1, Points: 2},
	{Student: students[0], Event: 2, Points: 1},
	{Student: students[0], Event: 3, Points: 3},
	{Student: students[0], Event: 4, Points: 1},
	{Student: students[1], Event: 3, Points: 2},
	{Student: students[1], Event: 5, Points: 5},
	{Student: students[2], Event: 4, Points: 1},
	// Event 99 is gone from the backend; the check-in time dates it.
	{Student: students[2], Event: 99, Points: 4, CheckedInAt: at("2024-09-01T18:00:00Z")},
}

func TestParseWindow(t *testing.T) {
	for in, want := range map[string]Window{"": WindowSemester, "all": WindowAll, " Year ": WindowYear, "semester": WindowSemester} {
		got, err := ParseWindow(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseWindow("decade")
	assert.ErrorIs(t, err, ErrUnknownWindow)
}

func TestWindowBounds(t *testing.T) {
	r := denver(t)

	_, _, bounded := WindowAll.Bounds(r, at("2024-09-15T18:00:00Z"))
	assert.False(t, bounded)

	tests := []struct {
		name       string
		window     Window
		now        string
		start, end string
	}{
		{"fall runs to new year", WindowSemester, "2024-09-15T18:00:00Z", "2024-08-01T06:00:00Z", "2025-01-01T07:00:00Z"},
		{"spring", WindowSemester, "2024-03-10T18:00:00Z", "2024-01-01T07:00:00Z", "2024-05-01T06:00:00Z"},
		{"summer", WindowSemester, "2024-06-01T12:00:00Z", "2024-05-01T06:00:00Z", "2024-08-01T06:00:00Z"},
		// 03:00 UTC on Jan 1 is still Dec 31 in Denver.
		{"civil year not utc year", WindowYear, "2025-01-01T03:00:00Z", "2024-01-01T07:00:00Z", "2025-01-01T07:00:00Z"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, bounded := tc.window.Bounds(r, at(tc.now))
			require.True(t, bounded)
			assert.Equal(t, at(tc.start), start)
			assert.Equal(t, at(tc.end), end)
		})
	}
}

func TestFilteredLeaderboard(t *testing.T) {
	r := denver(t)
	now := at("2024-09-15T18:00:00Z")

	standings := func(f Filter) (ids, points []int) {
		for _, st := range FilteredLeaderboard(r, dashboardEvents, dashboardAttendance, now, f) {
			ids = append(ids, st.Student.ID)
			points = append(points, st.Points)
		}
		return ids, points
	}

	tests := []struct {
		name   string
		filter Filter
		ids    []int
		points []int
	}{
		{"all", Filter{Window: WindowAll}, []int{1, 2, 3}, []int{7, 7, 5}},
		{"year", Filter{Window: WindowYear}, []int{2, 3, 1}, []int{7, 5, 5}},
		// Event 5 is Jul 31 in Denver even though it is Aug 1 in UTC.
		{"semester", Filter{Window: WindowSemester}, []int{3, 1, 2}, []int{5, 4, 2}},
		{"semester for one organization", Filter{Window: WindowSemester, Organization: "ASC"}, []int{3, 1}, []int{1, 1}},
		{"organization ignores case", Filter{Window: WindowAll, Organization: "asc"}, []int{2, 1, 3}, []int{5, 4, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ids, points := standings(tc.filter)
			assert.Equal(t, tc.ids, ids)
			assert.Equal(t, tc.points, points)
		})
	}

	assert.Empty(t, FilteredLeaderboard(r, dashboardEvents, dashboardAttendance, now, Filter{Window: WindowAll, Organization: "Nobody"}))
}

func TestAttendanceOverview(t *testing.T) {
	r := denver(t)
	now := at("2024-09-15T18:00:00Z")

	ov := AttendanceOverview(r, dashboardEvents, dashboardAttendance, now, Filter{Window: WindowAll})
	assert.Equal(t, []string{"2023-11-09", "2024-02-29", "2024-07-31", "2024-09-10", "2024-09-11"}, ov.Dates)
	assert.Equal(t, []TypeSeries{
		{EventType: UntypedEvents, AttendanceCounts: []int{0, 0, 0, 0, 2}},
		{EventType: "Social", AttendanceCounts: []int{0, 0, 0, 2, 0}},
		{EventType: "Workshop", AttendanceCounts: []int{1, 1, 1, 0, 0}},
	}, ov.Series)

	ov = AttendanceOverview(r, dashboardEvents, dashboardAttendance, now, Filter{Window: WindowSemester, Organization: "SOC"})
	assert.Equal(t, []string{"2024-09-10"}, ov.Dates)
	assert.Equal(t, []TypeSeries{{EventType: "Social", AttendanceCounts: []int{2}}}, ov.Series)

	ov = AttendanceOverview(r, nil, nil, now, Filter{Window: WindowAll})
	assert.Empty(t, ov.Dates)
	assert.Empty(t, ov.Series)
}
