package policy

import "strings"

const (
	ViewPast = "view past event information"
	// Everything grants every permission.
	Everything = "*"
)

func ViewCalendarData(eventType string) string {
	return "view calendar data for any " + eventType + " event"
}

func CreateEvent(eventType string) string {
	return "create " + eventType + " event"
}

// Permissions is the set of permissions granted to one caller. It answers
// the feed builder's access questions.
type Permissions map[string]struct{}

func NewPermissions(perms ...string) Permissions {
	p := make(Permissions, len(perms))
	for _, perm := range perms {
		if perm = strings.TrimSpace(perm); perm != "" {
			p[perm] = struct{}{}
		}
	}
	return p
}

func (p Permissions) Has(perm string) bool {
	if _, ok := p[Everything]; ok {
		return true
	}
	_, ok := p[perm]
	return ok
}

func (p Permissions) CanViewPast() bool { return p.Has(ViewPast) }

func (p Permissions) CanViewEventType(eventType string) bool {
	return p.Has(ViewCalendarData(eventType))
}

func (p Permissions) CanCreateEvent(eventType string) bool {
	return p.Has(CreateEvent(eventType))
}
