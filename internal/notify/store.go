// Package notify holds the process-wide in-app notification list, its
// read/unread bookkeeping and its durable copy.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/kv"
	"github.com/lalithlochan/sentinel/internal/metrics"
)

const (
	// MaxInMemory bounds the live list; the oldest entries are evicted first.
	MaxInMemory = 100
	// MaxPersisted bounds the durable copy.
	MaxPersisted = 50

	KeyNotifications = "notifications"
	KeyHasUnread     = "hasUnreadNotifications"
)

// Store is the single source of truth for in-app notifications. The unread
// flag is derived from the list inside every mutation and has no setter.
type Store struct {
	mu     sync.RWMutex
	items  []Notification // newest first
	unread int

	writer *kv.Writer
	logger *zap.Logger
	now    func() time.Time

	subs   map[int]chan []Notification
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open rehydrates the store from durable storage. A corrupt durable copy is
// discarded and the store starts empty; it is never reported as an error.
func Open(ctx context.Context, store kv.Store, logger *zap.Logger, opts ...Option) (*Store, error) {
	s := &Store{
		writer: kv.NewWriter(store, logger, 128),
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]chan []Notification),
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := store.Get(ctx, KeyNotifications)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		s.writer.Close()
		return nil, fmt.Errorf("load notifications: %w", err)
	default:
		var items []Notification
		if err := json.Unmarshal(raw, &items); err != nil {
			logger.Warn("discarding corrupt persisted notifications", zap.Error(err))
		} else {
			if len(items) > MaxInMemory {
				items = items[:MaxInMemory]
			}
			s.items = items
		}
	}

	s.unread = countUnread(s.items)

	flag, ok, err := kv.GetString(ctx, store, KeyHasUnread)
	if err != nil {
		logger.Warn("failed to read persisted unread flag", zap.Error(err))
	} else if ok && flag == "true" && s.unread == 0 {
		logger.Debug("persisted unread flag disagrees with list, using list")
	}

	logger.Info("notification store loaded",
		zap.Int("count", len(s.items)),
		zap.Int("unread", s.unread),
	)

	return s, nil
}

// Add prepends a new unread notification and returns it. It always succeeds.
func (s *Store) Add(kind Kind, title, message, link string) Notification {
	if !kind.Valid() {
		kind = KindInfo
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := Notification{
		ID:        newID(now),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		Link:      link,
	}

	items := make([]Notification, 0, min(len(s.items)+1, MaxInMemory))
	items = append(items, n)
	items = append(items, s.items...)
	if len(items) > MaxInMemory {
		items = items[:MaxInMemory]
	}
	s.items = items

	s.commitLocked()
	metrics.RecordNotificationAdded(string(kind))
	return n
}

// MarkAsRead flips one entry to read. Unknown ids are ignored.
func (s *Store) MarkAsRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			if s.items[i].Read {
				return
			}
			s.items[i].Read = true
			s.commitLocked()
			return
		}
	}
}

// MarkAllAsRead flips every entry to read.
func (s *Store) MarkAllAsRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		s.items[i].Read = true
	}
	s.commitLocked()
}

// Clear removes one entry.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			s.commitLocked()
			return
		}
	}
}

// ClearAll empties the list and erases the durable copy.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.unread = 0
	metrics.SetUnreadNotifications(0)
	s.writer.Delete(KeyNotifications)
	s.writer.Delete(KeyHasUnread)
	s.publishLocked()
}

// List returns a copy of the list, newest first.
func (s *Store) List() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Get looks up one notification by id.
func (s *Store) Get(id string) (Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// HasUnread reports whether at least one notification is unread.
func (s *Store) HasUnread() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread > 0
}

// UnreadCount is the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Subscribe returns a channel that receives the list after every mutation.
// Only the latest snapshot is buffered; a slow reader skips intermediate
// states but never sees them out of order. The current list is delivered
// immediately.
func (s *Store) Subscribe() (<-chan []Notification, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan []Notification, 1)
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Flush waits until every durable write issued so far has landed.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.Flush(ctx)
}

// Close flushes pending writes and closes subscriber channels.
func (s *Store) Close(ctx context.Context) error {
	err := s.writer.Flush(ctx)
	s.writer.Close()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	return err
}

// commitLocked recomputes the derived flag, persists and notifies. Callers
// hold s.mu, so queue order equals mutation order.
func (s *Store) commitLocked() {
	s.unread = countUnread(s.items)
	metrics.SetUnreadNotifications(s.unread)

	persisted := s.items
	if len(persisted) > MaxPersisted {
		persisted = persisted[:MaxPersisted]
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		s.logger.Error("failed to encode notifications", zap.Error(err))
	} else {
		s.writer.Set(KeyNotifications, data)
	}

	flag := "false"
	if s.unread > 0 {
		flag = "true"
	}
	s.writer.Set(KeyHasUnread, []byte(flag))

	s.publishLocked()
}

func (s *Store) publishLocked() {
	if len(s.subs) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		// Replace whatever the reader has not picked up yet.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Store) snapshotLocked() []Notification {
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}

func countUnread(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.Read {
			n++
		}
	}
	return n
}
