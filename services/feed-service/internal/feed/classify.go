package feed

import (
	"context"

	"github.com/md-rashed-zaman/batfeed/libs/oracle"
	otelx "github.com/md-rashed-zaman/batfeed/libs/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tag is the classification of a sub-interval.
type Tag string

const (
	TagAvailable   Tag = "available"
	TagUnavailable Tag = "unavailable"
)

// Palette holds the colours the feeds render with.
type Palette struct {
	Available   string
	Unavailable string
	OpenState   string
}

func DefaultPalette() Palette {
	return Palette{Available: "green", Unavailable: "red", OpenState: "#3788d8"}
}

func (p Palette) Color(tag Tag) string {
	if tag == TagAvailable {
		return p.Available
	}
	return p.Unavailable
}

// Classifier reduces the oracle's matching-units answer for one
// sub-interval to a single tag: available when any unit matches.
type Classifier struct {
	calendar oracle.Calendar
	tracer   trace.Tracer
}

func NewClassifier(calendar oracle.Calendar) *Classifier {
	return &Classifier{calendar: calendar, tracer: otelx.Tracer("feed")}
}

func (c *Classifier) Classify(ctx context.Context, eventType string, sub SubInterval, states []int64, units []oracle.Unit) (Tag, error) {
	ctx, span := c.tracer.Start(ctx, "feed.classify", trace.WithAttributes(
		attribute.String("feed.event_type", eventType),
		attribute.String("feed.start", sub.Start.Format(recordLayout)),
		attribute.String("feed.end", sub.End.Format(recordLayout)),
		attribute.Int("feed.units", len(units)),
	))
	defer span.End()

	res, err := c.calendar.MatchingUnits(ctx, eventType, units, oracle.MatchQuery{
		Start:  sub.Start,
		End:    sub.End,
		States: states,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "matching units failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("feed.included", len(res.Included)))
	if len(res.Included) > 0 {
		return TagAvailable, nil
	}
	return TagUnavailable, nil
}
