// Package scheduling turns an admin's event form into backend events,
// one per recurrence instance.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventpoints/internal/civil"
	appLog "eventpoints/internal/log"
	"eventpoints/internal/model"
	"eventpoints/internal/recurrence"
)

var ErrInvalidEvent = errors.New("invalid event")

// EventForm is the event creation form as submitted. Date and
// RecurrenceEnd are civil values in the configured zone.
type EventForm struct {
	Name         string `json:"name"`
	Organization string `json:"organization"`
	EventType    string `json:"event_type"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Points       int    `json:"points"`

	// Date is empty for "start at the next top of the hour".
	Date string `json:"date"`

	RecurrenceType string `json:"recurrence_type"`
	// RecurrenceEndPolicy is explicit, end_of_year or one_year_out. Empty
	// means explicit when RecurrenceEnd is set, end of year otherwise.
	RecurrenceEndPolicy string `json:"recurrence_end_policy"`
	RecurrenceEnd       string `json:"recurrence_end_date"`
}

// EventCreator is the part of the backend client scheduling needs.
type EventCreator interface {
	CreateEvent(ctx context.Context, ev model.Event) (model.Event, error)
}

// Options tunes a Scheduler. Zero values take defaults.
type Options struct {
	DefaultPoints int
	MaxInstances  int
}

type Scheduler struct {
	zone    *civil.Resolver
	backend EventCreator
	opts    Options
	newID   func() string
}

func New(zone *civil.Resolver, backend EventCreator, opts Options) *Scheduler {
	if opts.DefaultPoints <= 0 {
		opts.DefaultPoints = 1
	}
	if opts.MaxInstances <= 0 {
		opts.MaxInstances = recurrence.DefaultMaxInstances
	}
	return &Scheduler{
		zone:    zone,
		backend: backend,
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// Plan is a validated form: the event template and every instance start.
type Plan struct {
	Template  model.Event
	Rule      recurrence.Rule
	Civil     []civil.DateTime
	Instances []time.Time
}

// Plan validates form and expands its recurrence without touching the
// backend. now picks the default start.
func (s *Scheduler) Plan(form EventForm, now time.Time) (Plan, error) {
	name := strings.TrimSpace(form.Name)
	if name == "" {
		return Plan{}, fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if form.Points < 0 {
		return Plan{}, fmt.Errorf("%w: points must not be negative", ErrInvalidEvent)
	}

	anchor := s.zone.NextTopOfHour(now)
	if d := strings.TrimSpace(form.Date); d != "" {
		c, err := civil.Parse(d)
		if err != nil {
			return Plan{}, err
		}
		anchor = c
	}

	typ, err := recurrence.ParseType(form.RecurrenceType)
	if err != nil {
		return Plan{}, err
	}
	rule := recurrence.Rule{Type: typ, Anchor: anchor}
	if typ != recurrence.None {
		rule.End, err = recurrence.ParseEndPolicy(form.RecurrenceEndPolicy, form.RecurrenceEnd)
		if err != nil {
			return Plan{}, err
		}
	}

	seq, err := recurrence.ExpandWithLimit(rule, s.opts.MaxInstances)
	if err != nil {
		return Plan{}, err
	}

	p := Plan{
		Rule: rule,
		Template: model.Event{
			Name:           name,
			Organization:   strings.TrimSpace(form.Organization),
			EventType:      strings.TrimSpace(form.EventType),
			Description:    form.Description,
			Location:       strings.TrimSpace(form.Location),
			Points:         form.Points,
			IsRecurring:    typ != recurrence.None,
			RecurrenceType: string(typ),
		},
	}
	if p.Template.Points == 0 {
		p.Template.Points = s.opts.DefaultPoints
	}

	if typ != recurrence.None {
		until, err := s.zone.CivilToUTC(seq.End())
		if err != nil {
			return Plan{}, err
		}
		p.Template.RecurrenceEndDate = &until
	}

	for c := range seq.All() {
		u, err := s.zone.CivilToUTC(c)
		if err != nil {
			return Plan{}, err
		}
		p.Civil = append(p.Civil, c)
		p.Instances = append(p.Instances, u)
	}
	return p, nil
}

// Create plans form and stores one event per instance. The first event is
// the series parent; later ones point at it and share a series ID. On a
// backend failure the events created so far are returned with the error.
func (s *Scheduler) Create(ctx context.Context, form EventForm, now time.Time) ([]model.Event, error) {
	p, err := s.Plan(form, now)
	if err != nil {
		return nil, err
	}

	seriesID := ""
	if p.Template.IsRecurring {
		seriesID = s.newID()
	}

	created := make([]model.Event, 0, len(p.Instances))
	var parent *int
	for i, at := range p.Instances {
		ev := p.Template
		ev.Date = at
		ev.SeriesID = seriesID
		ev.ParentEvent = parent

		out, err := s.backend.CreateEvent(ctx, ev)
		if err != nil {
			appLog.Error("event create failed", err, "name", ev.Name, "instance", i, "of", len(p.Instances))
			return created, fmt.Errorf("create instance %d of %d (%s): %w", i+1, len(p.Instances), p.Civil[i], err)
		}
		if i == 0 && p.Template.IsRecurring {
			id := out.ID
			parent = &id
		}
		created = append(created, out)
	}

	appLog.Info("event series created", "name", p.Template.Name, "type", p.Template.RecurrenceType,
		"instances", len(created), "series", seriesID)
	return created, nil
}
