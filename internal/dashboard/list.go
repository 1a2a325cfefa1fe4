// Package dashboard contains the per-screen controllers of the Flowdeck
// client: list state machines that fetch collections through the API
// client, track loading/empty/error states, and refetch after mutating
// actions.
package dashboard

import (
	"context"
	"log/slog"
	"sync"
)

// ListState is the render state of a collection screen.
type ListState string

const (
	StateLoading ListState = "loading" // before the first response
	StateEmpty   ListState = "empty"   // loaded, zero items
	StateReady   ListState = "ready"   // loaded, items present
	StateFailed  ListState = "failed"  // initial load failed, retry affordance shown
)

// ListController manages one collection screen. Racing refreshes are
// last-write-wins: a generation counter discards responses that resolve
// after a newer fetch started. Fetch failures keep the prior items
// visible; mutating-action failures surface inline via LastError without
// touching the list.
type ListController[T any] struct {
	fetch func(ctx context.Context) ([]T, error)

	mu        sync.Mutex
	gen       int
	loaded    bool
	items     []T
	lastError string
}

// NewListController wraps a fetch function for one collection.
func NewListController[T any](fetch func(ctx context.Context) ([]T, error)) *ListController[T] {
	return &ListController[T]{fetch: fetch}
}

// Load fetches the collection. Safe to call concurrently; only the most
// recently started fetch may publish its result.
func (l *ListController[T]) Load(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	items, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		// A newer fetch superseded this one.
		return nil
	}
	if err != nil {
		// Prior state stays on screen; one failed panel never blocks
		// the rest.
		slog.Warn("list fetch failed", "err", err)
		return err
	}
	l.items = items
	l.loaded = true
	l.lastError = ""
	return nil
}

// State returns the current render state.
func (l *ListController[T]) State() ListState {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case !l.loaded && l.lastError != "":
		return StateFailed
	case !l.loaded:
		return StateLoading
	case len(l.items) == 0:
		return StateEmpty
	default:
		return StateReady
	}
}

// Items returns the loaded collection.
func (l *ListController[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items
}

// LastError returns the inline error from the most recent failed
// mutating action, or "".
func (l *ListController[T]) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastError
}

// Mutate runs an action and, on success, refetches the collection
// (command-then-invalidate). On failure the error message is kept for
// inline display and the list is left untouched.
func (l *ListController[T]) Mutate(ctx context.Context, action func(ctx context.Context) error) error {
	if err := action(ctx); err != nil {
		l.mu.Lock()
		l.lastError = err.Error()
		l.mu.Unlock()
		return err
	}
	l.mu.Lock()
	l.lastError = ""
	l.mu.Unlock()
	return l.Load(ctx)
}

// markFailed records an initial-load failure for screens that want the
// retry affordance instead of silent logging.
func (l *ListController[T]) markFailed(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		l.lastError = msg
	}
}

// LoadOrFail is Load plus the retry affordance on first-load failure.
func (l *ListController[T]) LoadOrFail(ctx context.Context) error {
	err := l.Load(ctx)
	if err != nil {
		l.markFailed(err.Error())
	}
	return err
}
