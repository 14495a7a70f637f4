package feed

import (
	"strings"
	"time"
)

// Window is a resolved feed window. Both ends are inclusive at minute
// granularity. An empty window yields an empty feed, not an error.
type Window struct {
	Start time.Time
	End   time.Time
	empty bool
}

func (w Window) Empty() bool { return w.empty }

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 or one of the naive layouts, which are read in loc.
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, invalidf("missing date")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidf("unparseable date %q", raw)
}

// ResolveWindow parses the requested bounds and clamps them with Clamp.
func ResolveWindow(rawStart, rawEnd string, canViewPast bool, now time.Time, loc *time.Location) (Window, error) {
	start, err := ParseTime(rawStart, loc)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseTime(rawEnd, loc)
	if err != nil {
		return Window{}, err
	}
	if end.Before(start) {
		return Window{}, invalidf("end %q is before start %q", rawEnd, rawStart)
	}
	return Clamp(start, end, canViewPast, now), nil
}

// Clamp hides the past from callers that may not view it: a window that
// has already ended becomes empty, and one in progress starts at now.
func Clamp(start, end time.Time, canViewPast bool, now time.Time) Window {
	if canViewPast || !now.After(start) {
		return Window{Start: start, End: end}
	}
	if now.After(end) {
		return Window{empty: true}
	}
	clamped := now.Truncate(time.Minute)
	if clamped.Before(start) {
		clamped = start
	}
	return Window{Start: clamped, End: end}
}
