package feed

import (
	"strconv"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
)

const renderingBackground = "background"

// FormatOptions are the per-request rendering choices.
type FormatOptions struct {
	Background     bool
	Editable       bool
	OpenStateColor string
}

// Display is the rendered part of an event record.
type Display struct {
	Title     string
	Color     string
	Rendering string
	Blocking  bool
	Fields    map[string]any
}

type Formatter interface {
	Format(ev oracle.Event, et oracle.EventType, opts FormatOptions) (Display, error)
}

// FormatterFor picks the strategy matching the event type's state model.
func FormatterFor(et oracle.EventType) Formatter {
	if et.FixedStates {
		return FixedStateFormatter{}
	}
	return OpenStateFormatter{}
}

// FixedStateFormatter renders an event from the declared state its value names.
type FixedStateFormatter struct{}

func (FixedStateFormatter) Format(ev oracle.Event, et oracle.EventType, opts FormatOptions) (Display, error) {
	state, ok := et.State(ev.Value)
	if !ok {
		return Display{}, &FormatError{EventID: ev.ID, EventType: et.ID, Value: ev.Value}
	}
	title := state.CalendarLabel
	if title == "" {
		title = state.Label
	}
	d := Display{
		Title:    title,
		Color:    state.Color,
		Blocking: true,
		Fields: map[string]any{
			"fixed":    1,
			"type":     et.ID,
			"state":    state.MachineName,
			"editable": opts.Editable,
		},
	}
	if !state.Blocking {
		d.Blocking = false
		if opts.Background {
			d.Rendering = renderingBackground
		}
	}
	return d, nil
}

// OpenStateFormatter renders the raw value of free-valued event types.
type OpenStateFormatter struct{}

func (OpenStateFormatter) Format(ev oracle.Event, et oracle.EventType, opts FormatOptions) (Display, error) {
	d := Display{
		Title: strconv.FormatInt(ev.Value, 10),
		Color: opts.OpenStateColor,
		Fields: map[string]any{
			"fixed":    0,
			"type":     et.ID,
			"value":    ev.Value,
			"editable": opts.Editable,
		},
	}
	if opts.Background {
		d.Rendering = renderingBackground
	}
	return d, nil
}
