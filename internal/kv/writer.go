package kv

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrWriterClosed is returned by Flush after Close.
var ErrWriterClosed = errors.New("kv: writer closed")

type opKind int

const (
	opSet opKind = iota
	opDelete
	opBarrier
)

type op struct {
	kind  opKind
	key   string
	value []byte
	done  chan struct{}
}

// Writer serializes writes to a Store through a single goroutine. Writes
// land in the order they were issued, so the last write to a key wins even
// when the backend is remote and slow.
type Writer struct {
	store   Store
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ops    chan op
	wg     sync.WaitGroup
}

// NewWriter starts the writer goroutine. depth bounds the queue; producers
// block when it is full.
func NewWriter(store Store, logger *zap.Logger, depth int) *Writer {
	if depth <= 0 {
		depth = 64
	}

	w := &Writer{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
		ops:     make(chan op, depth),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

// Set enqueues a write. It is dropped (and logged) after Close.
func (w *Writer) Set(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	w.enqueue(op{kind: opSet, key: key, value: v})
}

// Delete enqueues a removal.
func (w *Writer) Delete(key string) {
	w.enqueue(op{kind: opDelete, key: key})
}

// Flush blocks until every operation enqueued before it has been applied.
func (w *Writer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !w.enqueue(op{kind: opBarrier, done: done}) {
		return ErrWriterClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the writer goroutine.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.ops)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) enqueue(o op) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Warn("write after close dropped", zap.String("key", o.key))
		return false
	}
	w.ops <- o
	return true
}

func (w *Writer) loop() {
	defer w.wg.Done()

	for o := range w.ops {
		if o.kind == opBarrier {
			close(o.done)
			continue
		}
		w.apply(o)
	}
}

func (w *Writer) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	switch o.kind {
	case opSet:
		err = w.store.Set(ctx, o.key, o.value)
	case opDelete:
		err = w.store.Delete(ctx, o.key)
	}

	if err != nil {
		w.logger.Warn("durable write failed",
			zap.String("key", o.key),
			zap.Error(err),
		)
	}
}
