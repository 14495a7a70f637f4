package feed

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
)

const recordLayout = "2006-01-02T15:04:00"

// Record is one calendar feed item. Fields are merged into the JSON object
// next to the fixed keys and never override them.
type Record struct {
	ID         string
	ResourceID string
	Start      time.Time
	End        time.Time
	Title      string
	Color      string
	Rendering  string
	Blocking   bool
	Fields     map[string]any
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+8)
	maps.Copy(out, r.Fields)
	out["id"] = r.ID
	out["resourceId"] = r.ResourceID
	out["start"] = r.Start.Format(recordLayout)
	out["end"] = r.End.Format(recordLayout)
	out["title"] = r.Title
	out["color"] = r.Color
	out["blocking"] = boolInt(r.Blocking)
	if r.Rendering != "" {
		out["rendering"] = r.Rendering
	}
	return json.Marshal(out)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UnitResourceID is the resource id events of a unit render under.
func UnitResourceID(unitID string) string { return "S" + unitID }

// inZone moves t into loc, the zone every record of a feed is written in.
func inZone(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

// SegmentRecords renders merged segments as non-blocking background bands
// with times in loc.
func SegmentRecords(segments []Segment, palette Palette, loc *time.Location) []Record {
	out := make([]Record, 0, len(segments))
	for _, s := range segments {
		out = append(out, Record{
			ID:         s.ResourceID,
			ResourceID: s.ResourceID,
			Start:      inZone(s.Start, loc),
			End:        inZone(s.End, loc),
			Color:      palette.Color(s.Tag),
			Rendering:  renderingBackground,
		})
	}
	return out
}

// MapEvents renders the events of units in w with f. Events the formatter
// rejects are dropped and reported; the rest are always returned. Records
// keep unit order, then event start order. Times are written in loc.
func MapEvents(w Window, units []oracle.Unit, byUnit map[string][]oracle.Event, et oracle.EventType, f Formatter, opts FormatOptions, loc *time.Location) ([]Record, []error) {
	var (
		out  []Record
		errs []error
	)
	lo, hi := w.Start, w.End.Add(time.Minute)
	for _, u := range units {
		for _, ev := range oracle.EventsInWindow(byUnit[u.ID], lo, hi) {
			d, err := f.Format(ev, et, opts)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			fields := make(map[string]any, len(d.Fields)+1)
			maps.Copy(fields, d.Fields)
			fields["bat_id"] = ev.ID

			start, end := ev.Start, ev.End
			if start.Before(lo) {
				start = lo
			}
			if end.After(hi) {
				end = hi
			}
			out = append(out, Record{
				ID:         ev.ID,
				ResourceID: UnitResourceID(u.ID),
				Start:      inZone(start, loc),
				End:        inZone(end, loc),
				Title:      d.Title,
				Color:      d.Color,
				Rendering:  d.Rendering,
				Blocking:   d.Blocking,
				Fields:     fields,
			})
		}
	}
	return out, errs
}
