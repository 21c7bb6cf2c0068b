// Package relay forwards newly raised notifications to outbound sinks: an
// SNS topic, an SQS queue and a Slack-compatible webhook.
package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lalithlochan/sentinel/internal/circuitbreaker"
	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/notify"
)

// Sink delivers one notification to an outside system.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n notify.Notification) error
}

// Fanout hands a notification to every sink concurrently. A failing sink
// never stops delivery to the others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) Len() int { return len(f.sinks) }

// Deliver returns the joined errors of the sinks that failed.
func (f *Fanout) Deliver(ctx context.Context, n notify.Notification) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, sink := range f.sinks {
		g.Go(func() error {
			err := sink.Deliver(ctx, n)
			switch {
			case err == nil:
				metrics.RecordRelayDelivery(sink.Name(), "delivered")
				return nil
			case errors.Is(err, circuitbreaker.ErrCircuitOpen):
				metrics.RecordRelayDelivery(sink.Name(), "rejected")
			default:
				metrics.RecordRelayDelivery(sink.Name(), "failed")
				f.logger.Warn("relay delivery failed",
					zap.String("sink", sink.Name()),
					zap.String("notification_id", n.ID),
					zap.Error(err),
				)
			}
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

type Config struct {
	// Kinds selects what is relayed. Empty means every kind.
	Kinds []notify.Kind
	// Timeout bounds one delivery to all sinks. Default 15s.
	Timeout time.Duration
}

// ParseKinds reads a comma separated kind list, dropping unknown names.
func ParseKinds(s string) []notify.Kind {
	var kinds []notify.Kind
	for _, part := range strings.Split(s, ",") {
		k := notify.Kind(strings.ToLower(strings.TrimSpace(part)))
		if k.Valid() {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Source is the notification store as seen by the relay.
type Source interface {
	List() []notify.Notification
	Subscribe() (<-chan []notify.Notification, func())
}

// Relay watches the notification store and forwards what was added after
// it started. The list present at startup is never relayed.
type Relay struct {
	fanout  *Fanout
	kinds   map[notify.Kind]bool
	timeout time.Duration
	logger  *zap.Logger

	seen map[string]struct{}
}

// New wraps every sink in its own circuit breaker.
func New(sinks []Sink, cfg Config, logger *zap.Logger) *Relay {
	protected := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		breaker := circuitbreaker.New(circuitbreaker.DefaultConfig(s.Name()), logger)
		protected = append(protected, circuitbreaker.NewProtectedSink(s, breaker, logger))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	var kinds map[notify.Kind]bool
	if len(cfg.Kinds) > 0 {
		kinds = make(map[notify.Kind]bool, len(cfg.Kinds))
		for _, k := range cfg.Kinds {
			kinds[k] = true
		}
	}

	return &Relay{
		fanout:  NewFanout(logger, protected...),
		kinds:   kinds,
		timeout: timeout,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
}

// Run relays until ctx is done. The current list is read before
// subscribing, so anything added in between is still delivered.
func (r *Relay) Run(ctx context.Context, src Source) {
	r.prime(src.List())
	updates, cancel := src.Subscribe()
	defer cancel()

	r.logger.Info("relay started", zap.Int("sinks", r.fanout.Len()))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopping")
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			for _, n := range r.observe(snapshot) {
				r.deliver(ctx, n)
			}
		}
	}
}

func (r *Relay) prime(backlog []notify.Notification) {
	for _, n := range backlog {
		r.seen[n.ID] = struct{}{}
	}
}

// observe returns the notifications not seen before, oldest first, that
// match the configured kinds.
func (r *Relay) observe(snapshot []notify.Notification) []notify.Notification {
	current := make(map[string]struct{}, len(snapshot))
	var fresh []notify.Notification

	for i := len(snapshot) - 1; i >= 0; i-- {
		n := snapshot[i]
		current[n.ID] = struct{}{}
		if _, ok := r.seen[n.ID]; ok {
			continue
		}
		if r.kinds != nil && !r.kinds[n.Kind] {
			continue
		}
		fresh = append(fresh, n)
	}

	r.seen = current
	return fresh
}

func (r *Relay) deliver(ctx context.Context, n notify.Notification) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.fanout.Deliver(ctx, n); err != nil {
		r.logger.Debug("notification relayed with failures",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}
