package feed

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	otelx "github.com/md-rashed-zaman/batfeed/libs/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Access answers the permission questions the feeds depend on.
type Access interface {
	CanViewPast() bool
	CanViewEventType(eventType string) bool
	CanCreateEvent(eventType string) bool
}

// Selection is a list filter where the literal "all" selects everything.
type Selection struct {
	All bool
	IDs []string
}

// ParseSelection reads "all" or a comma separated list, dropping blanks.
func ParseSelection(raw string) Selection {
	raw = strings.TrimSpace(raw)
	if raw == "all" {
		return Selection{All: true}
	}
	return Selection{IDs: SplitList(raw)}
}

func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type MatchingUnitsRequest struct {
	UnitTypes   Selection
	Start       string
	End         string
	EventType   string
	EventStates []string
}

type EventsRequest struct {
	UnitTypes  Selection
	EventTypes Selection
	UnitIDs    []string
	Background bool
	Start      string
	End        string
}

type UnitsRequest struct {
	EventType string
	UnitTypes Selection
	IDs       []string
}

// Result is a feed plus the partial failures met while building it.
type Result[T any] struct {
	Items  []T
	Errors []error
}

// UnitGroup is one unit type in the units index.
type UnitGroup struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Children []UnitEntry `json:"children"`
}

type UnitEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	CreateEvent bool   `json:"create_event"`
}

type Config struct {
	Palette  Palette
	Location *time.Location
	Now      func() time.Time
}

// Builder assembles the calendar feeds from an oracle. It keeps no state
// between requests; hooks must be registered before the first request.
type Builder struct {
	oracle     oracle.Oracle
	classifier *Classifier
	logger     *slog.Logger
	tracer     trace.Tracer
	cfg        Config

	MatchingHooks Hooks[Record]
	EventHooks    Hooks[Record]
	UnitHooks     Hooks[UnitGroup]
}

func NewBuilder(o oracle.Oracle, logger *slog.Logger, cfg Config) *Builder {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Palette == (Palette{}) {
		cfg.Palette = DefaultPalette()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		oracle:     o,
		classifier: NewClassifier(o),
		logger:     logger,
		tracer:     otelx.Tracer("feed"),
		cfg:        cfg,
	}
}

// MatchingUnits builds the availability background feed: one band per
// unit type and merged run of sub-intervals, green when any unit of the
// type holds only the requested states.
func (b *Builder) MatchingUnits(ctx context.Context, req MatchingUnitsRequest, access Access) (Result[Record], error) {
	ctx, span := b.tracer.Start(ctx, "feed.matching_units", trace.WithAttributes(attribute.String("feed.event_type", req.EventType)))
	defer span.End()

	if req.EventType == "" {
		return Result[Record]{}, invalidf("event_type is required")
	}
	if err := checkStateTokens(req.EventStates); err != nil {
		return Result[Record]{}, err
	}
	start, end, err := b.parseBounds(req.Start, req.End)
	if err != nil {
		return Result[Record]{}, err
	}
	et, err := b.oracle.EventType(ctx, req.EventType)
	if err != nil {
		return Result[Record]{}, &OracleError{Op: "event type", Err: err}
	}
	states, err := resolveStates(et, req.EventStates)
	if err != nil {
		return Result[Record]{}, err
	}

	w := Clamp(start, end, access.CanViewPast(), b.cfg.Now())
	res := Result[Record]{Items: []Record{}}
	if w.Empty() {
		return res, nil
	}
	unitTypes, err := b.unitTypeIDs(ctx, req.UnitTypes)
	if err != nil {
		return Result[Record]{}, err
	}

	var segments []Segment
	for _, ut := range unitTypes {
		units, err := b.unitsWithDefaults(ctx, ut, et.ID)
		if err != nil {
			return Result[Record]{}, err
		}
		if len(units) == 0 {
			continue
		}
		byUnit, err := b.oracle.Events(ctx, et.ID, units, w.Start, w.End.Add(time.Minute))
		if err != nil {
			return Result[Record]{}, &OracleError{Op: "events", Err: err}
		}

		// The default state resumes where a stored event ends, so that is
		// a state change as much as an event start.
		starts := []time.Time{w.Start}
		for _, events := range byUnit {
			for _, ev := range events {
				starts = append(starts, ev.Start, ev.End)
			}
		}
		for _, sub := range SubIntervals(w, starts) {
			tag, err := b.classifier.Classify(ctx, et.ID, sub, states, units)
			if err != nil {
				cerr := &ClassificationError{ResourceID: ut, Start: sub.Start, End: sub.End, Err: err}
				b.logger.Warn("sub-interval classification failed", "err", cerr)
				res.Errors = append(res.Errors, cerr)
				continue
			}
			segments = append(segments, Segment{ResourceID: ut, Tag: tag, Start: sub.Start, End: sub.End})
		}
	}

	res.Items = SegmentRecords(MergeSegments(segments), b.cfg.Palette, b.cfg.Location)
	b.MatchingHooks.Run(ctx, &res.Items, HookContext{
		UnitTypes:   unitTypes,
		StartDate:   w.Start,
		EndDate:     w.End,
		EventTypes:  []string{et.ID},
		EventStates: req.EventStates,
	})
	span.SetAttributes(attribute.Int("feed.records", len(res.Items)), attribute.Int("feed.errors", len(res.Errors)))
	return res, nil
}

// Events builds the concrete events feed for every requested event type
// the caller may view. Other event types are skipped silently.
func (b *Builder) Events(ctx context.Context, req EventsRequest, access Access) (Result[Record], error) {
	ctx, span := b.tracer.Start(ctx, "feed.events")
	defer span.End()

	start, end, err := b.parseBounds(req.Start, req.End)
	if err != nil {
		return Result[Record]{}, err
	}
	w := Clamp(start, end, access.CanViewPast(), b.cfg.Now())
	res := Result[Record]{Items: []Record{}}
	if w.Empty() {
		return res, nil
	}

	eventTypes, err := b.eventTypes(ctx, req.EventTypes, access)
	if err != nil {
		return Result[Record]{}, err
	}
	unitTypes, err := b.unitTypeIDs(ctx, req.UnitTypes)
	if err != nil {
		return Result[Record]{}, err
	}

	for _, et := range eventTypes {
		f := FormatterFor(et)
		opts := FormatOptions{
			Background:     req.Background,
			Editable:       access.CanCreateEvent(et.ID),
			OpenStateColor: b.cfg.Palette.OpenState,
		}
		for _, ut := range unitTypes {
			units, err := b.oracle.ListUnits(ctx, ut, req.UnitIDs)
			if err != nil {
				return Result[Record]{}, &OracleError{Op: "list units", Err: err}
			}
			if len(units) == 0 {
				continue
			}
			byUnit, err := b.oracle.Events(ctx, et.ID, units, w.Start, w.End.Add(time.Minute))
			if err != nil {
				return Result[Record]{}, &OracleError{Op: "events", Err: err}
			}
			records, errs := MapEvents(w, units, byUnit, et, f, opts, b.cfg.Location)
			for _, err := range errs {
				b.logger.Warn("event dropped from feed", "err", err)
			}
			res.Items = append(res.Items, records...)
			res.Errors = append(res.Errors, errs...)
		}
	}

	typeIDs := make([]string, 0, len(eventTypes))
	for _, et := range eventTypes {
		typeIDs = append(typeIDs, et.ID)
	}
	b.EventHooks.Run(ctx, &res.Items, HookContext{
		UnitIDs:    req.UnitIDs,
		UnitTypes:  unitTypes,
		StartDate:  w.Start,
		EndDate:    w.End,
		EventTypes: typeIDs,
		Background: req.Background,
	})
	span.SetAttributes(attribute.Int("feed.records", len(res.Items)), attribute.Int("feed.errors", len(res.Errors)))
	return res, nil
}

// Units builds the resource index: units grouped by unit type, with ids
// matching the resource ids of the events feed. Unit types without units
// are left out. "all" selects the unit types tracking the event type.
func (b *Builder) Units(ctx context.Context, req UnitsRequest, access Access) ([]UnitGroup, error) {
	ctx, span := b.tracer.Start(ctx, "feed.units", trace.WithAttributes(attribute.String("feed.event_type", req.EventType)))
	defer span.End()

	if req.EventType == "" {
		return nil, invalidf("event_type is required")
	}
	et, err := b.oracle.EventType(ctx, req.EventType)
	if err != nil {
		return nil, &OracleError{Op: "event type", Err: err}
	}
	all, err := b.oracle.ListUnitTypes(ctx)
	if err != nil {
		return nil, &OracleError{Op: "list unit types", Err: err}
	}
	labels := make(map[string]string, len(all))
	var tracking []string
	for _, t := range all {
		labels[t.ID] = t.Label
		if _, ok := t.DefaultValues[et.ID]; ok {
			tracking = append(tracking, t.ID)
		}
	}
	types := req.UnitTypes.IDs
	if req.UnitTypes.All {
		types = tracking
	}

	createEvent := access.CanCreateEvent(et.ID)
	groups := []UnitGroup{}
	for _, ut := range types {
		units, err := b.oracle.ListUnits(ctx, ut, req.IDs)
		if err != nil {
			return nil, &OracleError{Op: "list units", Err: err}
		}
		if len(units) == 0 {
			continue
		}
		title := labels[ut]
		if title == "" {
			title = ut
		}
		g := UnitGroup{ID: ut, Title: title, Children: make([]UnitEntry, 0, len(units))}
		for _, u := range units {
			g.Children = append(g.Children, UnitEntry{ID: UnitResourceID(u.ID), Title: u.Name, CreateEvent: createEvent})
		}
		groups = append(groups, g)
	}

	b.UnitHooks.Run(ctx, &groups, HookContext{UnitIDs: req.IDs, UnitTypes: types, EventTypes: []string{et.ID}})
	return groups, nil
}

func (b *Builder) parseBounds(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := ParseTime(rawStart, b.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseTime(rawEnd, b.cfg.Location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, invalidf("end %q is before start %q", rawEnd, rawStart)
	}
	return start, end, nil
}

func (b *Builder) unitTypeIDs(ctx context.Context, sel Selection) ([]string, error) {
	if !sel.All {
		return sel.IDs, nil
	}
	types, err := b.oracle.ListUnitTypes(ctx)
	if err != nil {
		return nil, &OracleError{Op: "list unit types", Err: err}
	}
	ids := make([]string, 0, len(types))
	for _, t := range types {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (b *Builder) eventTypes(ctx context.Context, sel Selection, access Access) ([]oracle.EventType, error) {
	var candidates []oracle.EventType
	if sel.All {
		all, err := b.oracle.ListEventTypes(ctx)
		if err != nil {
			return nil, &OracleError{Op: "list event types", Err: err}
		}
		candidates = all
	} else {
		for _, id := range sel.IDs {
			if !access.CanViewEventType(id) {
				continue
			}
			et, err := b.oracle.EventType(ctx, id)
			if err != nil {
				return nil, &OracleError{Op: "event type", Err: err}
			}
			candidates = append(candidates, et)
		}
	}
	return slices.DeleteFunc(candidates, func(et oracle.EventType) bool {
		return !access.CanViewEventType(et.ID)
	}), nil
}

// unitsWithDefaults lists the units of a unit type with the type's default
// value for eventType. A unit type that declares no default reads as 0.
func (b *Builder) unitsWithDefaults(ctx context.Context, unitType, eventType string) ([]oracle.Unit, error) {
	units, err := b.oracle.ListUnits(ctx, unitType, nil)
	if err != nil {
		return nil, &OracleError{Op: "list units", Err: err}
	}
	if len(units) == 0 {
		return nil, nil
	}
	dv, err := b.oracle.DefaultValue(ctx, unitType, eventType)
	switch {
	case errors.Is(err, oracle.ErrNotFound):
		dv = 0
	case err != nil:
		return nil, &OracleError{Op: "default value", Err: err}
	}
	for i := range units {
		units[i].DefaultValue = dv
	}
	return units, nil
}

var machineName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// checkStateTokens rejects requested states that can be neither a state
// value nor a machine name, so they fail without an oracle round trip.
func checkStateTokens(raw []string) error {
	for _, s := range raw {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			continue
		}
		if !machineName.MatchString(s) {
			return invalidf("malformed state %q", s)
		}
	}
	return nil
}

// resolveStates maps the requested states, given as ids or machine names,
// to state values. Open-state types take numeric values only.
func resolveStates(et oracle.EventType, raw []string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			out = append(out, v)
			continue
		}
		if st, ok := et.StateByName(s); ok && et.FixedStates {
			out = append(out, st.ID)
			continue
		}
		return nil, invalidf("unknown state %q for event type %s", s, et.ID)
	}
	return out, nil
}
