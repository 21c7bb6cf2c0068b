// Package toast derives short-lived alerts from unread notifications and
// retires them on a timer.
package toast

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/notify"
)

// ReadMarker is the part of the notification store a toast needs.
type ReadMarker interface {
	MarkAsRead(id string)
}

// Toast is the visual rendering of one unread notification. Its ID is the
// source notification's ID.
type Toast struct {
	ID      string      `json:"id"`
	Kind    notify.Kind `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	Link    string      `json:"link,omitempty"`
	Visible bool        `json:"visible"`
}

type Config struct {
	Dwell time.Duration // visible time before the exit animation
	Exit  time.Duration // exit animation length
	Clock clockwork.Clock
}

// DefaultConfig returns the stock timings on the real clock.
func DefaultConfig() Config {
	return Config{
		Dwell: 8 * time.Second,
		Exit:  300 * time.Millisecond,
		Clock: clockwork.NewRealClock(),
	}
}

type entry struct {
	toast     Toast
	timer     clockwork.Timer
	dismissed bool
}

// Renderer owns the toast stack. Every timer it arms is stopped by Close.
type Renderer struct {
	mu     sync.Mutex
	cfg    Config
	marker ReadMarker
	logger *zap.Logger

	stack  []*entry // first-observed order
	seen   map[string]struct{}
	closed bool
}

func New(marker ReadMarker, cfg Config, logger *zap.Logger) *Renderer {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = 8 * time.Second
	}
	if cfg.Exit <= 0 {
		cfg.Exit = 300 * time.Millisecond
	}
	return &Renderer{
		cfg:    cfg,
		marker: marker,
		logger: logger,
		seen:   make(map[string]struct{}),
	}
}

// Observe takes a newest-first store snapshot and raises a toast for every
// unread notification the renderer has not seen before. A notification gets
// at most one toast in its lifetime.
func (r *Renderer) Observe(snapshot []notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	present := make(map[string]struct{}, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		n := snapshot[i]
		present[n.ID] = struct{}{}
		if n.Read {
			continue
		}
		if _, ok := r.seen[n.ID]; ok {
			continue
		}
		r.seen[n.ID] = struct{}{}

		e := &entry{toast: Toast{
			ID:      n.ID,
			Kind:    n.Kind,
			Title:   n.Title,
			Message: n.Message,
			Link:    n.Link,
			Visible: true,
		}}
		id := n.ID
		e.timer = r.cfg.Clock.AfterFunc(r.cfg.Dwell, func() { r.expire(id) })
		r.stack = append(r.stack, e)
		metrics.RecordToast("shown")
	}

	// forget notifications that left the store and no longer have a toast
	for id := range r.seen {
		if _, ok := present[id]; ok {
			continue
		}
		if r.indexLocked(id) < 0 {
			delete(r.seen, id)
		}
	}
}

// Dismiss hides a toast immediately, marks its notification read and
// removes it after the exit delay. It returns the navigation link. Repeated
// dismissals are no-ops.
func (r *Renderer) Dismiss(id string) (string, bool) {
	r.mu.Lock()
	i := r.indexLocked(id)
	if i < 0 || r.closed {
		r.mu.Unlock()
		return "", false
	}
	e := r.stack[i]
	link := e.toast.Link
	if e.dismissed {
		r.mu.Unlock()
		return link, true
	}
	e.dismissed = true

	// a toast already in its exit animation keeps its removal timer
	if e.toast.Visible {
		e.timer.Stop()
		e.toast.Visible = false
		e.timer = r.cfg.Clock.AfterFunc(r.cfg.Exit, func() { r.remove(id) })
	}
	r.mu.Unlock()

	metrics.RecordToast("dismissed")
	r.marker.MarkAsRead(id)
	return link, true
}

// Toasts returns the stack in first-observed order.
func (r *Renderer) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Toast, len(r.stack))
	for i, e := range r.stack {
		out[i] = e.toast
	}
	return out
}

// Run feeds store snapshots into Observe until ctx ends or updates closes,
// then stops every pending timer.
func (r *Renderer) Run(ctx context.Context, updates <-chan []notify.Notification) {
	defer r.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			r.Observe(snap)
		}
	}
}

// Close stops all timers and drops the stack.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, e := range r.stack {
		e.timer.Stop()
	}
	r.logger.Debug("toast renderer closed", zap.Int("pending", len(r.stack)))
	r.stack = nil
}

func (r *Renderer) expire(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 || r.closed {
		return
	}
	e := r.stack[i]
	if !e.toast.Visible || e.dismissed {
		return
	}
	e.toast.Visible = false
	e.timer = r.cfg.Clock.AfterFunc(r.cfg.Exit, func() { r.remove(id) })
	metrics.RecordToast("expired")
}

func (r *Renderer) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexLocked(id); i >= 0 {
		r.stack = append(r.stack[:i:i], r.stack[i+1:]...)
	}
}

func (r *Renderer) indexLocked(id string) int {
	for i, e := range r.stack {
		if e.toast.ID == id {
			return i
		}
	}
	return -1
}
