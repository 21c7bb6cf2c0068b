package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/notify"
)

// Sink mirrors relay.Sink to avoid circular imports.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n notify.Notification) error
}

// ProtectedSink wraps a relay sink with a CircuitBreaker, so a dead SNS
// topic or webhook endpoint fails fast instead of stalling the relay.
type ProtectedSink struct {
	sink    Sink
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSink wraps a sink with circuit breaker protection.
func NewProtectedSink(sink Sink, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSink {
	return &ProtectedSink{
		sink:    sink,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedSink) Name() string {
	return p.sink.Name()
}

// Deliver forwards through the breaker. While the circuit is open it
// returns ErrCircuitOpen without touching the sink.
func (p *ProtectedSink) Deliver(ctx context.Context, n notify.Notification) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected delivery, failing fast",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("notification_id", n.ID),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s sink unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.sink.Deliver(ctx, n)
	if err != nil {
		p.breaker.RecordFailure()
		p.logger.Debug("circuit breaker recorded failure",
			zap.String("breaker", p.breaker.config.Name),
			zap.Error(err),
		)
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedSink) Breaker() *CircuitBreaker {
	return p.breaker
}
