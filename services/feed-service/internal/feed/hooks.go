package feed

import (
	"context"
	"time"
)

// HookContext describes the request a feed was built for.
type HookContext struct {
	UnitIDs     []string
	UnitTypes   []string
	StartDate   time.Time
	EndDate     time.Time
	EventTypes  []string
	EventStates []string
	Background  bool
}

// Hook post-processes an assembled feed. It may reorder, edit, add or
// remove items through the pointer.
type Hook[T any] func(ctx context.Context, items *[]T, hc HookContext)

// Hooks run in registration order.
type Hooks[T any] []Hook[T]

func (h Hooks[T]) Run(ctx context.Context, items *[]T, hc HookContext) {
	for _, hook := range h {
		hook(ctx, items, hc)
	}
}
