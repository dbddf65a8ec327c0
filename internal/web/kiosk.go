package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"eventpoints/internal/checkin"
	appLog "eventpoints/internal/log"
)

//go:embed templates/kiosk.html
var kioskHTML string

var kioskTemplate = template.Must(template.New("kiosk").Parse(kioskHTML))

type kioskEvent struct {
	ID       int
	Time     string
	Name     string
	Location string
	Points   int
	Closest  bool
}

type kioskPage struct {
	Day    string
	Zone   string
	Stale  bool
	Events []kioskEvent
}

// handleKiosk renders today's events for the check-in screen. The body
// carries data-ready="true" once rendered, which the capture waits for.
//
// GET /kiosk
func (s *Server) handleKiosk(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		appLog.Error("kiosk: backend unavailable", err)
		http.Error(w, "event server unavailable", http.StatusBadGateway)
		return
	}

	now := s.now()
	page := kioskPage{
		Day:   s.zone.UTCToCivil(now).Time().Format("Monday, January 2"),
		Zone:  s.zone.Zone().Name,
		Stale: snap.Stale,
	}
	closest, err := checkin.Closest(s.zone, snap.Events, now)
	hasClosest := err == nil
	for _, ev := range checkin.TodaysEvents(s.zone, snap.Events, now) {
		page.Events = append(page.Events, kioskEvent{
			ID:       ev.ID,
			Time:     s.zone.UTCToCivil(ev.Date).Time().Format("3:04 PM"),
			Name:     ev.Name,
			Location: ev.Location,
			Points:   checkin.Points(ev),
			Closest:  hasClosest && ev.ID == closest.ID,
		})
	}

	var buf bytes.Buffer
	if err := kioskTemplate.Execute(&buf, page); err != nil {
		appLog.Error("kiosk render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
