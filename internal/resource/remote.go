// Package resource is the shared fetch/fallback primitive used wherever the
// console loads server-owned data.
package resource

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is the observable state of a Remote at one instant.
type Snapshot[T any] struct {
	State     State     `json:"state"`
	Data      T         `json:"data"`
	Err       error     `json:"-"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// FetchFunc performs one load.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Remote wraps a fetch so that failures turn into a fallback value and a
// logged error instead of propagating to the caller.
type Remote[T any] struct {
	name     string
	fetch    FetchFunc[T]
	fallback T
	logger   *zap.Logger

	mu   sync.RWMutex
	snap Snapshot[T]
	gen  uint64
}

func NewRemote[T any](name string, fetch FetchFunc[T], fallback T, logger *zap.Logger) *Remote[T] {
	return &Remote[T]{
		name:     name,
		fetch:    fetch,
		fallback: fallback,
		logger:   logger,
		snap:     Snapshot[T]{State: StateIdle, Data: fallback},
	}
}

// Load fetches once and returns the data, or the fallback on failure. A
// result that arrives after a newer Load started is discarded. A load whose
// context was cancelled leaves the previous state in place.
func (r *Remote[T]) Load(ctx context.Context) T {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	prev := r.snap.State
	r.snap.State = StateLoading
	r.mu.Unlock()

	data, err := r.fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil && gen == r.gen {
		r.snap.State = prev
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			r.logger.Debug("fetch abandoned", zap.String("resource", r.name))
		} else {
			r.logger.Warn("fetch failed, using fallback",
				zap.String("resource", r.name),
				zap.Error(err),
			)
		}
		if gen == r.gen && ctx.Err() == nil {
			r.snap = Snapshot[T]{State: StateFailed, Data: r.fallback, Err: err, Error: err.Error()}
		}
		return r.fallback
	}

	if gen == r.gen && ctx.Err() == nil {
		r.snap = Snapshot[T]{State: StateReady, Data: data, FetchedAt: time.Now()}
	}
	return data
}

// Snapshot returns the current state.
func (r *Remote[T]) Snapshot() Snapshot[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Reset returns to idle with the fallback value.
func (r *Remote[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.snap = Snapshot[T]{State: StateIdle, Data: r.fallback}
}
