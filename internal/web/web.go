package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"eventpoints/internal/backend"
	"eventpoints/internal/civil"
	"eventpoints/internal/config"
	appLog "eventpoints/internal/log"
	"eventpoints/internal/model"
	"eventpoints/internal/scheduling"
)

// snapshotTTL is how long a backend snapshot serves requests before the
// next request refetches it. The cron refresh in cmd/eventpoints keeps it
// warm in normal operation.
const snapshotTTL = 30 * time.Second

// Backend is what the HTTP layer needs from the backend client.
type Backend interface {
	Snapshot(ctx context.Context) (backend.Snapshot, error)
	CreateEvent(ctx context.Context, ev model.Event) (model.Event, error)
	CreateAttendance(ctx context.Context, req model.AttendanceRequest) (model.Attendance, error)
}

// Server provides the time, recurrence, event and check-in APIs plus the
// kiosk page.
type Server struct {
	cfg       *config.Config
	zone      *civil.Resolver
	backend   Backend
	scheduler *scheduling.Scheduler
	metrics   *metrics
	router    chi.Router

	// now is the clock; tests replace it.
	now func() time.Time

	snapMu sync.RWMutex
	snap   *backend.Snapshot
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, zone *civil.Resolver, b Backend) *Server {
	s := &Server{
		cfg:     cfg,
		zone:    zone,
		backend: b,
		scheduler: scheduling.New(zone, b, scheduling.Options{
			DefaultPoints: cfg.DefaultPoints,
			MaxInstances:  cfg.MaxInstances,
		}),
		metrics: newMetrics(),
		now:     time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// Public: health, the kiosk and walk-up check-in.
	r.Get("/health", s.handleHealth)
	r.Get("/kiosk", s.handleKiosk)
	r.Route("/api/checkin", func(r chi.Router) {
		r.Get("/today", s.handleCheckinToday)
		r.Post("/", s.handleCheckinClosest)
		r.Get("/{eventID}/students", s.handleAvailableStudents)
		r.Post("/{eventID}", s.handleCheckin)
	})

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			r.Use(s.basicAuthMiddleware)
		}
		r.Get("/metrics", s.metrics.handler().ServeHTTP)

		r.Route("/api/time", func(r chi.Router) {
			r.Get("/next-hour", s.handleNextHour)
			r.Get("/to-utc", s.handleToUTC)
			r.Get("/to-civil", s.handleToCivil)
		})
		r.Post("/api/recurrence/expand", s.handleExpand)

		r.Get("/api/events", s.handleListEvents)
		r.Post("/api/events", s.handleCreateEvents)
		r.Get("/api/events.ics", s.handleEventsICS)
		r.Get("/api/leaderboard", s.handleLeaderboard)
		r.Get("/api/attendance/overview", s.handleAttendanceOverview)
	})
	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware requires the configured Basic Auth credentials.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventpoints", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Refresh fetches a new backend snapshot and makes it current.
func (s *Server) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

// refresh is Refresh returning the snapshot it stored, so callers never
// have to re-read s.snap after a concurrent invalidate.
func (s *Server) refresh(ctx context.Context) (backend.Snapshot, error) {
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		s.metrics.refreshes.WithLabelValues("error").Inc()
		return backend.Snapshot{}, err
	}
	result := "ok"
	if snap.Stale {
		result = "stale"
	}
	s.metrics.refreshes.WithLabelValues(result).Inc()

	stored := snap
	s.snapMu.Lock()
	s.snap = &stored
	s.snapMu.Unlock()

	appLog.Info("backend snapshot refreshed",
		"events", len(snap.Events),
		"students", len(snap.Students),
		"attendance", len(snap.Attendance),
		"stale", snap.Stale,
	)
	return snap, nil
}

// snapshot returns the current snapshot, refetching it once it is older
// than snapshotTTL. A failed refetch still serves the previous one.
func (s *Server) snapshot(ctx context.Context) (backend.Snapshot, error) {
	s.snapMu.RLock()
	cur := s.snap
	s.snapMu.RUnlock()
	if cur != nil && time.Since(cur.FetchedAt) < snapshotTTL {
		return *cur, nil
	}

	snap, err := s.refresh(ctx)
	if err != nil {
		if cur != nil {
			appLog.Error("snapshot refresh failed; serving previous", err)
			return *cur, nil
		}
		return backend.Snapshot{}, err
	}
	return snap, nil
}

// invalidate forces the next request to refetch.
func (s *Server) invalidate() {
	s.snapMu.Lock()
	s.snap = nil
	s.snapMu.Unlock()
}

// recordAttendance adds a check-in to the current snapshot so duplicate
// detection sees it before the next refresh.
func (s *Server) recordAttendance(a model.Attendance) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snap == nil {
		return
	}
	next := *s.snap
	next.Attendance = append(append([]model.Attendance(nil), s.snap.Attendance...), a)
	s.snap = &next
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// readJSON decodes a request body, rejecting unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadBody, err)
	}
	return nil
}

var errBadBody = errors.New("invalid request body")
