package web

import (
	"errors"
	"net/http"

	"eventpoints/internal/checkin"
	"eventpoints/internal/civil"
	"eventpoints/internal/ics"
	appLog "eventpoints/internal/log"
	"eventpoints/internal/model"
	"eventpoints/internal/scheduling"
)

// eventDTO is an event with its start shown in the civil zone as well.
type eventDTO struct {
	model.Event
	CivilDate civil.DateTime `json:"civil_date"`
}

func (s *Server) eventDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{Event: ev, CivilDate: s.zone.UTCToCivil(ev.Date)})
	}
	return out
}

type eventsResponse struct {
	Upcoming []eventDTO `json:"upcoming"`
	Past     []eventDTO `json:"past"`
	Stale    bool       `json:"stale,omitempty"`
}

// handleListEvents splits events into upcoming and past.
//
// GET /api/events?q=workshop
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("list events: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}

	q := r.URL.Query().Get("q")
	matched := make([]model.Event, 0, len(snap.Events))
	for _, ev := range snap.Events {
		if ev.Matches(q) {
			matched = append(matched, ev)
		}
	}
	upcoming, past := checkin.Split(matched, s.now())
	writeJSON(w, http.StatusOK, eventsResponse{
		Upcoming: s.eventDTOs(upcoming),
		Past:     s.eventDTOs(past),
		Stale:    snap.Stale,
	})
}

type createEventsResponse struct {
	Events []eventDTO `json:"events"`
	Error  string     `json:"error,omitempty"`
}

// handleCreateEvents creates an event, or one event per instance for a
// recurring form.
//
// POST /api/events
func (s *Server) handleCreateEvents(w http.ResponseWriter, r *http.Request) {
	var form scheduling.EventForm
	if err := readJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.scheduler.Create(r.Context(), form, s.now())
	s.metrics.instances.Add(float64(len(created)))
	if len(created) > 0 {
		s.invalidate()
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, createEventsResponse{Events: s.eventDTOs(created)})
	case isInputError(err) || errors.Is(err, scheduling.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// Partial series: report what exists so the caller can clean up.
		writeJSON(w, http.StatusBadGateway, createEventsResponse{
			Events: s.eventDTOs(created),
			Error:  err.Error(),
		})
	}
}

// handleEventsICS serves all events as an iCalendar feed.
//
// GET /api/events.ics
func (s *Server) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("ics feed: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	feed := ics.Feed{Name: "Events", Timezone: s.zone.Zone().Name, Now: s.now()}
	if err := feed.Write(w, snap.Events); err != nil {
		appLog.Error("ics feed write failed", err)
	}
}

// dashboardFilter reads ?filter=all|year|semester and ?organization=.
func dashboardFilter(r *http.Request) (checkin.Filter, error) {
	q := r.URL.Query()
	window, err := checkin.ParseWindow(q.Get("filter"))
	if err != nil {
		return checkin.Filter{}, err
	}
	return checkin.Filter{Window: window, Organization: q.Get("organization")}, nil
}

// handleLeaderboard totals points per student over a window of the civil
// calendar, optionally for one organization.
//
// GET /api/leaderboard?filter=year&organization=ASC
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	filter, err := dashboardFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("leaderboard: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, checkin.FilteredLeaderboard(s.zone, snap.Events, snap.Attendance, s.now(), filter))
}

// GET /api/attendance/overview?filter=all
func (s *Server) handleAttendanceOverview(w http.ResponseWriter, r *http.Request) {
	filter, err := dashboardFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("attendance overview: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, checkin.AttendanceOverview(s.zone, snap.Events, snap.Attendance, s.now(), filter))
}
