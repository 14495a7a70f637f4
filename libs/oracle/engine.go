package oracle

import (
	"slices"
	"sort"
	"time"
)

// EventsInWindow returns the events overlapping [start, end), ordered by start.
func EventsInWindow(events []Event, start, end time.Time) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Overlaps(start, end) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// StatesOver returns the distinct values unit holds over [start, end): the
// values of the overlapping events plus the unit default wherever no event
// covers the range.
func StatesOver(unit Unit, events []Event, start, end time.Time) []int64 {
	seen := map[int64]struct{}{}
	cursor := start
	for _, ev := range EventsInWindow(events, start, end) {
		if ev.Start.After(cursor) {
			seen[unit.DefaultValue] = struct{}{}
		}
		seen[ev.Value] = struct{}{}
		if ev.End.After(cursor) {
			cursor = ev.End
		}
	}
	if cursor.Before(end) {
		seen[unit.DefaultValue] = struct{}{}
	}

	out := make([]int64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Match evaluates q against already loaded events. A unit is included when
// all of its states over the query range are valid (any, with Intersect).
// Units listed in ExcludeUnits are always excluded.
func Match(units []Unit, eventsByUnit map[string][]Event, q MatchQuery) MatchingResult {
	res := MatchingResult{
		Included: map[string][]int64{},
		Excluded: map[string][]int64{},
	}
	start := q.Start
	end := q.End.Add(time.Minute)
	if end.Before(start) {
		end = start.Add(time.Minute)
	}

	valid := make(map[int64]struct{}, len(q.States))
	for _, s := range q.States {
		valid[s] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(q.ExcludeUnits))
	for _, id := range q.ExcludeUnits {
		excluded[id] = struct{}{}
	}

	for _, u := range units {
		states := StatesOver(u, eventsByUnit[u.ID], start, end)
		if _, skip := excluded[u.ID]; skip {
			res.Excluded[u.ID] = states
			continue
		}
		matched := 0
		for _, s := range states {
			if _, ok := valid[s]; ok {
				matched++
			}
		}
		ok := matched == len(states)
		if q.Intersect {
			ok = matched > 0
		}
		if ok && len(states) > 0 {
			res.Included[u.ID] = states
		} else {
			res.Excluded[u.ID] = states
		}
	}
	return res
}
