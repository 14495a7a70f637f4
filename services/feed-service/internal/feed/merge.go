package feed

import (
	"slices"
	"time"
)

// Segment is a classified background band for one resource, inclusive at
// both ends.
type Segment struct {
	ResourceID string
	Tag        Tag
	Start      time.Time
	End        time.Time
}

// MergeSegments collapses same-tag segments of a resource that follow each
// other with no gap at minute granularity. Resources keep their
// first-appearance order; segments within a resource come out sorted by
// start. Merging merged output is a no-op.
func MergeSegments(segments []Segment) []Segment {
	var order []string
	groups := map[string][]Segment{}
	for _, s := range segments {
		if _, ok := groups[s.ResourceID]; !ok {
			order = append(order, s.ResourceID)
		}
		groups[s.ResourceID] = append(groups[s.ResourceID], s)
	}

	out := make([]Segment, 0, len(segments))
	for _, id := range order {
		group := groups[id]
		slices.SortStableFunc(group, func(a, b Segment) int { return a.Start.Compare(b.Start) })

		cur := group[0]
		for _, next := range group[1:] {
			if next.Tag == cur.Tag && next.Start.Equal(cur.End.Add(time.Minute)) {
				cur.End = next.End
				continue
			}
			out = append(out, cur)
			cur = next
		}
		out = append(out, cur)
	}
	return out
}
