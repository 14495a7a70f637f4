package feed

import (
	"slices"
	"time"
)

// SubInterval is [Start, End] inclusive at minute granularity.
type SubInterval struct {
	Start time.Time
	End   time.Time
}

// Breakpoints returns the instants at which unit state may change inside
// w: the window end plus every start, clipped into the window, truncated
// to the minute, deduplicated and sorted ascending.
func Breakpoints(w Window, starts []time.Time) []time.Time {
	if w.Empty() {
		return nil
	}
	end := w.End.Truncate(time.Minute)
	lo := w.Start.Truncate(time.Minute)

	points := make([]time.Time, 0, len(starts)+1)
	points = append(points, end)
	for _, s := range starts {
		s = s.Truncate(time.Minute)
		switch {
		case s.Before(lo):
			s = lo
		case s.After(end):
			s = end
		}
		points = append(points, s)
	}

	slices.SortFunc(points, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(points, func(a, b time.Time) bool { return a.Equal(b) })
}

// SubIntervals turns consecutive breakpoints b_i, b_i+1 into the sub-interval
// [b_i, b_i+1 - 1m]. With fewer than two breakpoints it yields nothing.
func SubIntervals(w Window, starts []time.Time) []SubInterval {
	points := Breakpoints(w, starts)
	if len(points) < 2 {
		return nil
	}
	subs := make([]SubInterval, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		subs = append(subs, SubInterval{Start: points[i], End: points[i+1].Add(-time.Minute)})
	}
	return subs
}
