package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAccess struct {
	past   bool
	view   map[string]bool
	create map[string]bool
}

func (a testAccess) CanViewPast() bool               { return a.past }
func (a testAccess) CanViewEventType(id string) bool { return a.view[id] }
func (a testAccess) CanCreateEvent(id string) bool   { return a.create[id] }

func fullAccess() testAccess {
	return testAccess{
		past:   true,
		view:   map[string]bool{"availability": true, "pricing": true},
		create: map[string]bool{"availability": true},
	}
}

// roomStore holds unit type room with units 1 and 2, available by default,
// and unit 1 occupied over [Jan 2 10:00, Jan 2 14:00).
func roomStore(t *testing.T) *oracle.MemoryStore {
	t.Helper()
	s := oracle.NewMemoryStore()
	s.PutUnitType(oracle.UnitType{ID: "room", Label: "Room", DefaultValues: map[string]int64{"availability": stateAvailable}})
	s.PutUnitType(oracle.UnitType{ID: "desk", Label: "Desk"})
	s.PutUnit(oracle.Unit{ID: "1", Name: "Room 1", TypeID: "room"})
	s.PutUnit(oracle.Unit{ID: "2", Name: "Room 2", TypeID: "room"})
	s.PutUnit(oracle.Unit{ID: "9", Name: "Desk 9", TypeID: "desk"})
	s.PutEventType(availabilityType())
	s.PutEventType(pricingType())
	require.NoError(t, s.PutEvent(oracle.Event{ID: "e1", UnitID: "1", TypeID: "availability", Start: jan2(10, 0), End: jan2(14, 0), Value: stateOccupied}))
	return s
}

func newTestBuilder(o oracle.Oracle) *Builder {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewBuilder(o, logger, Config{Now: func() time.Time { return jan2(0, 0) }})
}

func roomRequest() MatchingUnitsRequest {
	return MatchingUnitsRequest{
		UnitTypes:   Selection{IDs: []string{"room"}},
		Start:       "2026-01-02 00:00",
		End:         "2026-01-02 23:59",
		EventType:   "availability",
		EventStates: []string{"available"},
	}
}

func TestMatchingUnitsRoomScenario(t *testing.T) {
	b := newTestBuilder(roomStore(t))

	res, err := b.MatchingUnits(context.Background(), roomRequest(), fullAccess())
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Items, 1, "both sub-intervals are green, so they merge")
	rec := res.Items[0]
	assert.Equal(t, "room", rec.ID)
	assert.Equal(t, "room", rec.ResourceID)
	assert.Equal(t, jan2(0, 0), rec.Start)
	assert.Equal(t, jan2(23, 58), rec.End)
	assert.Equal(t, "green", rec.Color)
	assert.Equal(t, "background", rec.Rendering)
	assert.False(t, rec.Blocking)
}

func TestMatchingUnitsSplitsWhenEveryUnitIsOccupied(t *testing.T) {
	s := roomStore(t)
	require.NoError(t, s.PutEvent(oracle.Event{ID: "e2", UnitID: "2", TypeID: "availability", Start: jan2(10, 0), End: jan2(14, 0), Value: stateOccupied}))
	b := newTestBuilder(s)

	res, err := b.MatchingUnits(context.Background(), roomRequest(), fullAccess())
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, "green", res.Items[0].Color)
	assert.Equal(t, jan2(9, 59), res.Items[0].End)
	assert.Equal(t, "red", res.Items[1].Color)
	assert.Equal(t, jan2(10, 0), res.Items[1].Start)
	assert.Equal(t, jan2(13, 59), res.Items[1].End)
	assert.Equal(t, "green", res.Items[2].Color)
	assert.Equal(t, jan2(14, 0), res.Items[2].Start)
	assert.Equal(t, jan2(23, 58), res.Items[2].End)
}

func TestMatchingUnitsTurnsGreenWhenTheDefaultResumes(t *testing.T) {
	s := oracle.NewMemoryStore()
	s.PutUnitType(oracle.UnitType{ID: "room", Label: "Room", DefaultValues: map[string]int64{"availability": stateAvailable}})
	s.PutUnit(oracle.Unit{ID: "1", Name: "Room 1", TypeID: "room"})
	s.PutEventType(availabilityType())
	require.NoError(t, s.PutEvent(oracle.Event{ID: "e1", UnitID: "1", TypeID: "availability", Start: jan2(10, 0), End: jan2(14, 0), Value: stateOccupied}))
	b := newTestBuilder(s)

	res, err := b.MatchingUnits(context.Background(), roomRequest(), fullAccess())
	require.NoError(t, err)
	colors := make([]string, 0, len(res.Items))
	for _, rec := range res.Items {
		colors = append(colors, rec.Color)
	}
	assert.Equal(t, []string{"green", "red", "green"}, colors)
	require.Len(t, res.Items, 3)
	assert.Equal(t, jan2(14, 0), res.Items[2].Start)
}

type flakyOracle struct {
	*oracle.MemoryStore
	failAt time.Time
}

func (o flakyOracle) MatchingUnits(ctx context.Context, eventType string, units []oracle.Unit, q oracle.MatchQuery) (oracle.MatchingResult, error) {
	if q.Start.Equal(o.failAt) {
		return oracle.MatchingResult{}, errors.New("oracle unavailable")
	}
	return o.MemoryStore.MatchingUnits(ctx, eventType, units, q)
}

func TestMatchingUnitsClassificationFailureIsPartial(t *testing.T) {
	b := newTestBuilder(flakyOracle{MemoryStore: roomStore(t), failAt: jan2(10, 0)})

	res, err := b.MatchingUnits(context.Background(), roomRequest(), fullAccess())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	var cerr *ClassificationError
	require.True(t, errors.As(res.Errors[0], &cerr))
	assert.Equal(t, jan2(10, 0), cerr.Start)
	assert.Equal(t, jan2(13, 59), cerr.End)

	require.Len(t, res.Items, 2, "the failed sub-interval is never coloured")
	assert.Equal(t, jan2(9, 59), res.Items[0].End)
	assert.Equal(t, jan2(14, 0), res.Items[1].Start)
}

func TestMatchingUnitsEmptyWindow(t *testing.T) {
	b := newTestBuilder(roomStore(t))
	b.cfg.Now = func() time.Time { return jan2(0, 0).Add(72 * time.Hour) }

	res, err := b.MatchingUnits(context.Background(), roomRequest(), testAccess{})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}

func TestMatchingUnitsClampsThePast(t *testing.T) {
	b := newTestBuilder(roomStore(t))
	b.cfg.Now = func() time.Time { return jan2(12, 0) }

	res, err := b.MatchingUnits(context.Background(), roomRequest(), testAccess{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, jan2(12, 0), res.Items[0].Start)
}

func TestMatchingUnitsRejectsBadInputBeforeQuerying(t *testing.T) {
	b := newTestBuilder(struct{ oracle.Oracle }{})
	ctx := context.Background()

	req := roomRequest()
	req.Start = "not a date"
	_, err := b.MatchingUnits(ctx, req, fullAccess())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	req = roomRequest()
	req.EventType = ""
	_, err = b.MatchingUnits(ctx, req, fullAccess())
	assert.True(t, errors.Is(err, ErrInvalidInput))

	for _, state := range []string{"Not A State", "1.5", "available;drop"} {
		req = roomRequest()
		req.EventStates = []string{"available", state}
		_, err = b.MatchingUnits(ctx, req, fullAccess())
		assert.True(t, errors.Is(err, ErrInvalidInput), "state %q", state)
	}
}

func TestMatchingUnitsUnknownInputs(t *testing.T) {
	b := newTestBuilder(roomStore(t))

	req := roomRequest()
	req.EventType = "missing"
	_, err := b.MatchingUnits(context.Background(), req, fullAccess())
	assert.True(t, errors.Is(err, oracle.ErrNotFound))

	req = roomRequest()
	req.EventStates = []string{"sleeping"}
	_, err = b.MatchingUnits(context.Background(), req, fullAccess())
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestMatchingUnitsHooksRunOnce(t *testing.T) {
	b := newTestBuilder(roomStore(t))
	calls := 0
	b.MatchingHooks = Hooks[Record]{
		func(_ context.Context, items *[]Record, hc HookContext) {
			calls++
			assert.Equal(t, []string{"room"}, hc.UnitTypes)
			assert.Equal(t, []string{"available"}, hc.EventStates)
			(*items)[0].Title = "rooms"
		},
		func(_ context.Context, items *[]Record, _ HookContext) {
			*items = append(*items, Record{ID: "extra"})
		},
	}

	res, err := b.MatchingUnits(context.Background(), roomRequest(), fullAccess())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "rooms", res.Items[0].Title)
	assert.Equal(t, "extra", res.Items[1].ID)
}

func eventsRequest() EventsRequest {
	return EventsRequest{
		UnitTypes:  Selection{All: true},
		EventTypes: Selection{IDs: []string{"availability"}},
		Start:      "2026-01-02",
		End:        "2026-01-02 23:59",
	}
}

func TestEventsFeed(t *testing.T) {
	b := newTestBuilder(roomStore(t))

	res, err := b.Events(context.Background(), eventsRequest(), fullAccess())
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Items, 1)

	rec := res.Items[0]
	assert.Equal(t, "e1", rec.ID)
	assert.Equal(t, "S1", rec.ResourceID)
	assert.Equal(t, "Booked", rec.Title)
	assert.True(t, rec.Blocking)
	assert.Equal(t, "e1", rec.Fields["bat_id"])
	assert.Equal(t, true, rec.Fields["editable"])
}

func TestEventsFeedDropsUndeclaredStates(t *testing.T) {
	s := roomStore(t)
	require.NoError(t, s.PutEvent(oracle.Event{ID: "bad", UnitID: "2", TypeID: "availability", Start: jan2(8, 0), End: jan2(9, 0), Value: 42}))
	require.NoError(t, s.PutEvent(oracle.Event{ID: "e3", UnitID: "2", TypeID: "availability", Start: jan2(15, 0), End: jan2(16, 0), Value: stateCleaning}))
	b := newTestBuilder(s)

	res, err := b.Events(context.Background(), eventsRequest(), fullAccess())
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Items))
	for _, r := range res.Items {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"e1", "e3"}, ids)
	require.Len(t, res.Errors, 1)
	var ferr *FormatError
	require.True(t, errors.As(res.Errors[0], &ferr))
	assert.Equal(t, "bad", ferr.EventID)
}

func TestEventsFeedSkipsHiddenEventTypes(t *testing.T) {
	b := newTestBuilder(roomStore(t))
	req := eventsRequest()
	req.EventTypes = Selection{All: true}

	res, err := b.Events(context.Background(), req, testAccess{past: true, view: map[string]bool{"pricing": true}})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	req.EventTypes = Selection{IDs: []string{"availability"}}
	res, err = b.Events(context.Background(), req, testAccess{past: true})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestEventsFeedOpenState(t *testing.T) {
	s := roomStore(t)
	require.NoError(t, s.PutEvent(oracle.Event{ID: "p1", UnitID: "9", TypeID: "pricing", Start: jan2(0, 0), End: jan2(12, 0), Value: 95}))
	b := newTestBuilder(s)
	req := eventsRequest()
	req.EventTypes = Selection{IDs: []string{"pricing"}}
	req.UnitIDs = []string{"9"}
	req.Background = true

	res, err := b.Events(context.Background(), req, fullAccess())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	rec := res.Items[0]
	assert.Equal(t, "S9", rec.ResourceID)
	assert.Equal(t, "95", rec.Title)
	assert.Equal(t, DefaultPalette().OpenState, rec.Color)
	assert.Equal(t, "background", rec.Rendering)
	assert.Equal(t, 0, rec.Fields["fixed"])
}

type failingEvents struct{ *oracle.MemoryStore }

func (failingEvents) Events(context.Context, string, []oracle.Unit, time.Time, time.Time) (map[string][]oracle.Event, error) {
	return nil, errors.New("connection reset")
}

func TestEventsFeedOracleFailureFailsTheRequest(t *testing.T) {
	b := newTestBuilder(failingEvents{roomStore(t)})
	_, err := b.Events(context.Background(), eventsRequest(), fullAccess())
	var oerr *OracleError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, "events", oerr.Op)
}

func TestUnitsIndex(t *testing.T) {
	b := newTestBuilder(roomStore(t))

	groups, err := b.Units(context.Background(), UnitsRequest{EventType: "availability", UnitTypes: Selection{All: true}}, fullAccess())
	require.NoError(t, err)
	assert.Equal(t, []UnitGroup{{
		ID:    "room",
		Title: "Room",
		Children: []UnitEntry{
			{ID: "S1", Title: "Room 1", CreateEvent: true},
			{ID: "S2", Title: "Room 2", CreateEvent: true},
		},
	}}, groups, "desk does not track availability")

	groups, err = b.Units(context.Background(), UnitsRequest{EventType: "availability", UnitTypes: Selection{IDs: []string{"desk", "room"}}, IDs: []string{"2"}}, testAccess{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []UnitEntry{{ID: "S2", Title: "Room 2"}}, groups[0].Children)
}

func TestRecordJSON(t *testing.T) {
	rec := Record{
		ID:         "e1",
		ResourceID: "S1",
		Start:      jan2(10, 0),
		End:        jan2(14, 0).Add(30 * time.Second),
		Title:      "Booked",
		Color:      "#CC2727",
		Blocking:   true,
		Fields:     map[string]any{"bat_id": "e1", "id": "ignored", "fixed": 1},
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "e1",
		"resourceId": "S1",
		"start": "2026-01-02T10:00:00",
		"end": "2026-01-02T14:00:00",
		"title": "Booked",
		"color": "#CC2727",
		"blocking": 1,
		"bat_id": "e1",
		"fixed": 1
	}`, string(raw))
}

func TestFeedsWriteTimesInTheConfiguredZone(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	b := NewBuilder(roomStore(t), logger, Config{Location: cet, Now: func() time.Time { return jan2(0, 0) }})

	events, err := b.Events(context.Background(), eventsRequest(), fullAccess())
	require.NoError(t, err)
	require.Len(t, events.Items, 1)
	raw, err := json.Marshal(events.Items[0])
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "2026-01-02T11:00:00", rec["start"])
	assert.Equal(t, "2026-01-02T15:00:00", rec["end"])

	bands, err := b.MatchingUnits(context.Background(), roomRequest(), fullAccess())
	require.NoError(t, err)
	require.Len(t, bands.Items, 1)
	raw, err = json.Marshal(bands.Items[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "2026-01-02T00:00:00", rec["start"])
	assert.Equal(t, "2026-01-02T23:58:00", rec["end"])
}
