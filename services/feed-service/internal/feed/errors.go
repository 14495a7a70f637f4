package feed

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks a request rejected before any oracle query.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// OracleError fails a whole feed. It wraps the oracle's error so callers
// can still match oracle.ErrNotFound or context errors.
type OracleError struct {
	Op  string
	Err error
}

func (e *OracleError) Error() string { return "oracle " + e.Op + ": " + e.Err.Error() }
func (e *OracleError) Unwrap() error { return e.Err }

// ClassificationError reports a sub-interval the oracle could not classify.
// The sub-interval is left out of the feed; the rest is still returned.
type ClassificationError struct {
	ResourceID string
	Start      time.Time
	End        time.Time
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s [%s, %s]: %v", e.ResourceID, e.Start.Format(recordLayout), e.End.Format(recordLayout), e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// FormatError reports an event dropped from the feed because its value
// could not be rendered.
type FormatError struct {
	EventID   string
	EventType string
	Value     int64
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("event %s: value %d is not a declared state of %s", e.EventID, e.Value, e.EventType)
}
