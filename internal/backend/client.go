// Package backend talks to the REST service that owns events, students
// and attendance. List responses are cached in bbolt with their ETag so a
// refresh can revalidate cheaply and fall back to the last good copy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appLog "eventpoints/internal/log"
	"eventpoints/internal/model"
)

const (
	EventsPath     = "/api/events/"
	StudentsPath   = "/api/students/"
	AttendancePath = "/api/attendance/"
)

// ErrNotModifiedUncached is returned when the backend answers 304 for a
// path we hold no body for.
var ErrNotModifiedUncached = errors.New("backend: 304 Not Modified but no cached body available")

// StatusError is a non-2xx backend response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client is a backend API client. A nil cache disables caching.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *Cache
}

// NewClient creates a Client for baseURL (e.g. "http://127.0.0.1:8000").
// token, if set, is sent as a bearer token.
func NewClient(baseURL, token string, cache *Cache) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cache: cache,
	}
}

// fetchResult is the outcome of a cached GET.
type fetchResult struct {
	Body      []byte
	FromCache bool // 304, body reused
	Stale     bool // backend failed, body is the last good copy
}

// Snapshot is everything the check-in and kiosk views need from the backend.
type Snapshot struct {
	Events     []model.Event
	Students   []model.Student
	Attendance []model.Attendance
	FetchedAt  time.Time
	// Stale is set when any part came from the cache because the backend
	// could not be reached.
	Stale bool
}

// Snapshot fetches events, students and attendance.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{FetchedAt: time.Now().UTC()}

	stale, err := c.list(ctx, EventsPath, &snap.Events)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Stale = snap.Stale || stale

	stale, err = c.list(ctx, StudentsPath, &snap.Students)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Stale = snap.Stale || stale

	stale, err = c.list(ctx, AttendancePath, &snap.Attendance)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Stale = snap.Stale || stale

	return snap, nil
}

// ListEvents returns all events.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	_, err := c.list(ctx, EventsPath, &out)
	return out, err
}

// ListStudents returns all students.
func (c *Client) ListStudents(ctx context.Context) ([]model.Student, error) {
	var out []model.Student
	_, err := c.list(ctx, StudentsPath, &out)
	return out, err
}

// ListAttendance returns all attendance records.
func (c *Client) ListAttendance(ctx context.Context) ([]model.Attendance, error) {
	var out []model.Attendance
	_, err := c.list(ctx, AttendancePath, &out)
	return out, err
}

// CreateEvent stores ev and returns the backend's copy (with its ID).
func (c *Client) CreateEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	var out model.Event
	if err := c.post(ctx, EventsPath, ev, &out); err != nil {
		return model.Event{}, err
	}
	return out, nil
}

// CreateAttendance records one check-in.
func (c *Client) CreateAttendance(ctx context.Context, req model.AttendanceRequest) (model.Attendance, error) {
	var out model.Attendance
	if err := c.post(ctx, AttendancePath, req, &out); err != nil {
		return model.Attendance{}, err
	}
	return out, nil
}

// list GETs a collection and decodes it into out. Both a bare JSON array
// and a paginated {"results": [...]} body are accepted.
func (c *Client) list(ctx context.Context, path string, out any) (stale bool, err error) {
	res, err := c.fetch(ctx, path)
	if err != nil {
		return false, err
	}
	if err := decodeList(res.Body, out); err != nil {
		return false, fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return res.Stale, nil
}

func decodeList(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return err
		}
		if page.Results == nil {
			return errors.New("object body without results")
		}
		trimmed = page.Results
	}
	return json.Unmarshal(trimmed, out)
}

// fetch GETs path, honoring ETag and Last-Modified from the cache and
// falling back to the cached body when the backend is unreachable or
// answers with an error.
func (c *Client) fetch(ctx context.Context, path string) (fetchResult, error) {
	cached, haveCached := c.cache.load(path)

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fetchResult{}, err
	}
	if haveCached {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if haveCached {
			appLog.Error("backend fetch network error, using cached body", err, "path", path)
			return fetchResult{Body: cached.Body, FromCache: true, Stale: true}, nil
		}
		return fetchResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fetchResult{}, err
		}
		if !json.Valid(body) {
			if haveCached {
				appLog.Error("backend returned invalid JSON, using cached body", errors.New("invalid json"), "path", path)
				return fetchResult{Body: cached.Body, FromCache: true, Stale: true}, nil
			}
			return fetchResult{}, fmt.Errorf("backend: %s returned invalid JSON", path)
		}
		entry := cacheEntry{
			Path:         path,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		}
		if err := c.cache.save(entry); err != nil {
			appLog.Error("backend cache save failed", err, "path", path)
		}
		appLog.Debug("backend fetch", "path", path, "status", resp.StatusCode, "bytes", len(body))
		return fetchResult{Body: body}, nil

	case resp.StatusCode == http.StatusNotModified:
		if !haveCached {
			return fetchResult{}, ErrNotModifiedUncached
		}
		appLog.Debug("backend not modified; using cache", "path", path)
		return fetchResult{Body: cached.Body, FromCache: true}, nil

	default:
		serr := statusError(resp, http.MethodGet, path)
		if haveCached {
			appLog.Error("backend fetch non-OK, using cached body", serr, "path", path)
			return fetchResult{Body: cached.Body, FromCache: true, Stale: true}, nil
		}
		return fetchResult{}, serr
	}
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp, http.MethodPost, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func statusError(resp *http.Response, method, path string) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Method: method,
		Path:   path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
