package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"eventpoints/internal/backend"
	"eventpoints/internal/checkin"
	appLog "eventpoints/internal/log"
	"eventpoints/internal/model"
)

type todayResponse struct {
	Date    string     `json:"date"`
	Events  []eventDTO `json:"events"`
	Closest *eventDTO  `json:"closest"`
}

// handleCheckinToday lists today's events in the civil zone and the one a
// general check-in would go to.
//
// GET /api/checkin/today
func (s *Server) handleCheckinToday(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("checkin today: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}

	now := s.now()
	today := s.zone.UTCToCivil(now)
	resp := todayResponse{
		Date:   today.Time().Format("2006-01-02"),
		Events: s.eventDTOs(checkin.TodaysEvents(s.zone, snap.Events, now)),
	}
	if ev, err := checkin.Closest(s.zone, snap.Events, now); err == nil {
		dto := s.eventDTOs([]model.Event{ev})[0]
		resp.Closest = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAvailableStudents lists students not yet checked in to an event.
//
// GET /api/checkin/{eventID}/students?q=ada
func (s *Server) handleAvailableStudents(w http.ResponseWriter, r *http.Request) {
	snap, ev, ok := s.eventFromPath(w, r)
	if !ok {
		return
	}
	students := checkin.Available(snap.Students, snap.Attendance, ev.ID, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, students)
}

type checkinRequest struct {
	ANumber   string `json:"a_number"`
	StudentID int    `json:"student_id"`
}

type checkinResponse struct {
	Event      eventDTO         `json:"event"`
	Student    model.Student    `json:"student"`
	Attendance model.Attendance `json:"attendance"`
}

// handleCheckin records a check-in to a specific event.
//
// POST /api/checkin/{eventID}  {"a_number": "A01234567"} or {"student_id": 3}
func (s *Server) handleCheckin(w http.ResponseWriter, r *http.Request) {
	snap, ev, ok := s.eventFromPath(w, r)
	if !ok {
		return
	}
	s.checkin(w, r, snap, ev)
}

// handleCheckinClosest records a general check-in to the closest event
// of the day.
//
// POST /api/checkin
func (s *Server) handleCheckinClosest(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("checkin: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}
	ev, err := checkin.Closest(s.zone, snap.Events, s.now())
	if err != nil {
		s.metrics.checkins.WithLabelValues("no_event").Inc()
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.checkin(w, r, snap, ev)
}

func (s *Server) checkin(w http.ResponseWriter, r *http.Request, snap backend.Snapshot, ev model.Event) {
	var req checkinRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	student, err := findStudent(snap.Students, req)
	if err != nil {
		s.metrics.checkins.WithLabelValues("unknown_student").Inc()
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	attReq, err := checkin.Request(ev, student, snap.Attendance)
	if err != nil {
		s.metrics.checkins.WithLabelValues("duplicate").Inc()
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	att, err := s.backend.CreateAttendance(r.Context(), attReq)
	var serr *backend.StatusError
	if errors.As(err, &serr) && serr.Code == http.StatusBadRequest {
		// Another kiosk won the race; the backend's unique (student, event)
		// constraint rejected this one.
		s.metrics.checkins.WithLabelValues("duplicate").Inc()
		appLog.Info("checkin rejected by backend", "event", ev.ID, "student", student.ID, "reason", serr.Body)
		writeError(w, http.StatusConflict, checkin.ErrAlreadyCheckedIn.Error())
		return
	}
	if err != nil {
		s.metrics.checkins.WithLabelValues("error").Inc()
		appLog.Error("checkin: create attendance failed", err, "event", ev.ID, "student", student.ID)
		writeError(w, http.StatusBadGateway, "could not record check-in")
		return
	}
	// The create response carries only the student ID.
	att.Student = student
	if att.Event == 0 {
		att.Event = ev.ID
	}
	s.recordAttendance(att)
	s.metrics.checkins.WithLabelValues("ok").Inc()

	appLog.Info("checked in", "event", ev.ID, "student", student.ID, "points", attReq.Points)
	writeJSON(w, http.StatusCreated, checkinResponse{
		Event:      s.eventDTOs([]model.Event{ev})[0],
		Student:    student,
		Attendance: att,
	})
}

func findStudent(students []model.Student, req checkinRequest) (model.Student, error) {
	if strings.TrimSpace(req.ANumber) != "" {
		return checkin.FindByANumber(students, req.ANumber)
	}
	for _, st := range students {
		if req.StudentID != 0 && st.ID == req.StudentID {
			return st, nil
		}
	}
	return model.Student{}, checkin.ErrUnknownStudent
}

// eventFromPath resolves {eventID} against the current snapshot, writing
// the error response itself when it fails.
func (s *Server) eventFromPath(w http.ResponseWriter, r *http.Request) (backend.Snapshot, model.Event, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "eventID"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "eventID must be a positive integer")
		return backend.Snapshot{}, model.Event{}, false
	}
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("checkin: backend unavailable", err)
		writeError(w, http.StatusBadGateway, "backend unavailable")
		return backend.Snapshot{}, model.Event{}, false
	}
	for _, ev := range snap.Events {
		if ev.ID == id {
			return snap, ev, true
		}
	}
	writeError(w, http.StatusNotFound, errEventNotFound.Error())
	return backend.Snapshot{}, model.Event{}, false
}

var errEventNotFound = errors.New("event not found")
