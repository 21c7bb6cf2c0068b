package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/notify"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestCircuitBreaker_StartsInClosedState(t *testing.T) {
	cb := New(DefaultConfig("test"), testLogger())
	if cb.GetState() != StateClosed {
		t.Fatalf("expected StateClosed, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_AllowsRequestsWhenClosed(t *testing.T) {
	cb := New(DefaultConfig("test"), testLogger())
	for i := 0; i < 10; i++ {
		if !cb.Allow() {
			t.Fatalf("request %d should be allowed", i)
		}
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3, RecoveryTimeout: 1 * time.Second}, testLogger())
	for i := 0; i < 3; i++ {
		cb.Allow()
		cb.RecordFailure()
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_RejectsWhenOpen(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 5 * time.Second}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("should reject when open")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("should allow a trial request after timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatalf("expected StateHalfOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_ClosesOnSuccessfulProbe(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected StateClosed, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_ReopensOnFailedProbe(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected StateOpen, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 3}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Fatal("success should have reset failure count")
	}
}

func TestCircuitBreaker_HalfOpenLimitsRequests(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 50 * time.Millisecond, HalfOpenMaxRequests: 1}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("first half-open request should be allowed")
	}
	if cb.Allow() {
		t.Fatal("second half-open request should be rejected")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(Config{Name: "test", MaxFailures: 2, RecoveryTimeout: 5 * time.Second}, testLogger())
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordFailure()
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Fatalf("expected StateClosed after reset, got %s", cb.GetState())
	}
	if !cb.Allow() {
		t.Fatal("should allow after reset")
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := New(Config{Name: "stats-test", MaxFailures: 5, RecoveryTimeout: 5 * time.Second}, testLogger())
	cb.Allow()
	cb.RecordSuccess()
	cb.Allow()
	cb.RecordFailure()
	cb.Allow()
	cb.RecordSuccess()
	stats := cb.Stats()
	if stats.Name != "stats-test" {
		t.Fatalf("name = %s", stats.Name)
	}
	if stats.TotalRequests != 3 {
		t.Fatalf("total_requests = %d", stats.TotalRequests)
	}
	if stats.TotalSuccesses != 2 {
		t.Fatalf("total_successes = %d", stats.TotalSuccesses)
	}
	if stats.TotalFailures != 1 {
		t.Fatalf("total_failures = %d", stats.TotalFailures)
	}
}

func TestCircuitBreaker_DefaultConfig(t *testing.T) {
	cfg := DefaultConfig("svc")
	if cfg.MaxFailures != 5 {
		t.Fatalf("max_failures = %d", cfg.MaxFailures)
	}
	if cfg.RecoveryTimeout != 30*time.Second {
		t.Fatalf("recovery_timeout = %v", cfg.RecoveryTimeout)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d) = %s, want %s", tt.s, got, tt.want)
		}
	}
}

// --- Execute Tests ---

func TestExecute_RecordsOutcome(t *testing.T) {
	cb := New(Config{Name: "platform-api", MaxFailures: 2}, testLogger())

	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	down := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func(context.Context) error { return down }); !errors.Is(err, down) {
			t.Fatalf("expected pass-through error, got %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("expected open, got %s", cb.GetState())
	}

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while the circuit is open")
	}
}

func TestExecute_IsFailureFiltersErrors(t *testing.T) {
	clientErr := errors.New("422 unprocessable")
	cb := New(Config{
		Name:        "platform-api",
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return !errors.Is(err, clientErr) },
	}, testLogger())

	for i := 0; i < 5; i++ {
		cb.Execute(context.Background(), func(context.Context) error { return clientErr })
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("client errors must not open the circuit, got %s", cb.GetState())
	}

	cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if cb.GetState() != StateClosed {
		t.Fatalf("cancellation must not open the circuit, got %s", cb.GetState())
	}

	cb.Execute(context.Background(), func(context.Context) error { return errors.New("502") })
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after a server failure, got %s", cb.GetState())
	}
}

func TestName(t *testing.T) {
	if got := New(DefaultConfig("sns"), testLogger()).Name(); got != "sns" {
		t.Fatalf("Name() = %q", got)
	}
}

// --- ProtectedSink Tests ---

type mockSink struct {
	deliverErr   error
	deliverCalls int
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Deliver(ctx context.Context, n notify.Notification) error {
	m.deliverCalls++
	return m.deliverErr
}

func testNotif() notify.Notification {
	return notify.Notification{ID: "1700000000000-abcd1234", Kind: notify.KindError, Title: "scan failed"}
}

func TestProtectedSink_PassesThrough(t *testing.T) {
	mock := &mockSink{}
	cb := New(Config{Name: "test", MaxFailures: 5}, testLogger())
	ps := NewProtectedSink(mock, cb, testLogger())
	if err := ps.Deliver(context.Background(), testNotif()); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if mock.deliverCalls != 1 {
		t.Fatalf("calls = %d", mock.deliverCalls)
	}
	if ps.Name() != "mock" {
		t.Fatalf("name = %q", ps.Name())
	}
}

func TestProtectedSink_FailFastWhenOpen(t *testing.T) {
	mock := &mockSink{deliverErr: errors.New("down")}
	cb := New(Config{Name: "test", MaxFailures: 2}, testLogger())
	ps := NewProtectedSink(mock, cb, testLogger())
	ps.Deliver(context.Background(), testNotif())
	ps.Deliver(context.Background(), testNotif())
	mock.deliverCalls = 0
	err := ps.Deliver(context.Background(), testNotif())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got: %v", err)
	}
	if mock.deliverCalls != 0 {
		t.Fatalf("sink called %d times when circuit open", mock.deliverCalls)
	}
}

func TestProtectedSink_RecordsStats(t *testing.T) {
	mock := &mockSink{}
	cb := New(Config{Name: "test", MaxFailures: 5}, testLogger())
	ps := NewProtectedSink(mock, cb, testLogger())
	ps.Deliver(context.Background(), testNotif())
	if cb.Stats().TotalSuccesses != 1 {
		t.Fatal("expected 1 success")
	}
	mock.deliverErr = errors.New("fail")
	ps.Deliver(context.Background(), testNotif())
	if ps.Breaker().Stats().TotalFailures != 1 {
		t.Fatal("expected 1 failure")
	}
}

func TestProtectedSink_FullLifecycle(t *testing.T) {
	mock := &mockSink{}
	cb := New(Config{Name: "lifecycle", MaxFailures: 3, RecoveryTimeout: 50 * time.Millisecond}, testLogger())
	ps := NewProtectedSink(mock, cb, testLogger())
	n := testNotif()

	// Phase 1: working
	if err := ps.Deliver(context.Background(), n); err != nil {
		t.Fatalf("phase1: %v", err)
	}

	// Phase 2: webhook fails, circuit opens
	mock.deliverErr = errors.New("webhook down")
	for i := 0; i < 3; i++ {
		ps.Deliver(context.Background(), n)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("phase2: expected open, got %s", cb.GetState())
	}

	// Phase 3: fail fast
	mock.deliverCalls = 0
	err := ps.Deliver(context.Background(), n)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("phase3: %v", err)
	}
	if mock.deliverCalls != 0 {
		t.Fatal("phase3: sink should not be called")
	}

	// Phase 4: wait for recovery
	time.Sleep(60 * time.Millisecond)

	// Phase 5: endpoint recovers
	mock.deliverErr = nil
	if err := ps.Deliver(context.Background(), n); err != nil {
		t.Fatalf("phase5: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("phase5: expected closed, got %s", cb.GetState())
	}
}
