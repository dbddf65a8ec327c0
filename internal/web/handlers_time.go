package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"eventpoints/internal/civil"
	appLog "eventpoints/internal/log"
	"eventpoints/internal/recurrence"
)

// instantDTO pairs a civil value with its UTC instant.
type instantDTO struct {
	Civil civil.DateTime `json:"civil"`
	UTC   time.Time      `json:"utc"`
}

func (s *Server) instant(c civil.DateTime) (instantDTO, error) {
	u, err := s.zone.CivilToUTC(c)
	if err != nil {
		return instantDTO{}, err
	}
	return instantDTO{Civil: c, UTC: u}, nil
}

// handleNextHour returns the default start for a new event.
//
// GET /api/time/next-hour
func (s *Server) handleNextHour(w http.ResponseWriter, _ *http.Request) {
	out, err := s.instant(s.zone.NextTopOfHour(s.now()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.conversions.WithLabelValues("to_utc").Inc()
	writeJSON(w, http.StatusOK, out)
}

// GET /api/time/to-utc?civil=2024-01-01T10:00
func (s *Server) handleToUTC(w http.ResponseWriter, r *http.Request) {
	c, err := civil.Parse(r.URL.Query().Get("civil"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.instant(c)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.metrics.conversions.WithLabelValues("to_utc").Inc()
	writeJSON(w, http.StatusOK, out)
}

// GET /api/time/to-civil?utc=2024-01-01T17:00:00Z
func (s *Server) handleToCivil(w http.ResponseWriter, r *http.Request) {
	u, err := time.Parse(time.RFC3339, strings.TrimSpace(r.URL.Query().Get("utc")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "utc must be an RFC 3339 timestamp")
		return
	}
	s.metrics.conversions.WithLabelValues("to_civil").Inc()
	writeJSON(w, http.StatusOK, instantDTO{Civil: s.zone.UTCToCivil(u), UTC: u.UTC()})
}

type expandRequest struct {
	Type      string `json:"type"`
	Anchor    string `json:"anchor"`
	EndPolicy string `json:"end_policy"`
	End       string `json:"end"`
}

type expandResponse struct {
	Type      recurrence.Type `json:"type"`
	End       civil.DateTime  `json:"end"`
	Count     int             `json:"count"`
	Instances []instantDTO    `json:"instances"`
}

// handleExpand previews the instances a recurring event would create.
//
// POST /api/recurrence/expand
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	var req expandRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.expandRule(req)
	if err != nil {
		label := "unknown"
		if typ, perr := recurrence.ParseType(req.Type); perr == nil {
			label = string(typ)
		}
		s.metrics.expansions.WithLabelValues(label, "invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seq, err := recurrence.ExpandWithLimit(rule, s.cfg.MaxInstances)
	if err != nil {
		s.metrics.expansions.WithLabelValues(string(rule.Type), "invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := expandResponse{Type: rule.Type, End: seq.End(), Count: seq.Len(), Instances: make([]instantDTO, 0, seq.Len())}
	for c := range seq.All() {
		in, err := s.instant(c)
		if err != nil {
			appLog.Error("expand: instance conversion failed", err, "civil", c.String())
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Instances = append(resp.Instances, in)
	}
	s.metrics.expansions.WithLabelValues(string(rule.Type), "ok").Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) expandRule(req expandRequest) (recurrence.Rule, error) {
	typ, err := recurrence.ParseType(req.Type)
	if err != nil {
		return recurrence.Rule{}, err
	}
	anchor := s.zone.NextTopOfHour(s.now())
	if strings.TrimSpace(req.Anchor) != "" {
		if anchor, err = civil.Parse(req.Anchor); err != nil {
			return recurrence.Rule{}, err
		}
	}
	end, err := recurrence.ParseEndPolicy(req.EndPolicy, req.End)
	if err != nil {
		return recurrence.Rule{}, err
	}
	return recurrence.Rule{Type: typ, Anchor: anchor, End: end}, nil
}

// isInputError reports errors caused by the request rather than the backend.
func isInputError(err error) bool {
	return errors.Is(err, civil.ErrInvalidCivilDateTime) ||
		errors.Is(err, recurrence.ErrInvalidRecurrenceRule) ||
		errors.Is(err, recurrence.ErrTooManyInstances) ||
		errors.Is(err, errBadBody)
}
