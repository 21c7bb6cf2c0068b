// Package activity is the notification center: an on-demand panel over the
// server's recent activity feed.
package activity

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/resource"
	"github.com/lalithlochan/sentinel/internal/services"
)

var (
	// ErrUnknownEntry is returned by Select for an id not in the panel.
	ErrUnknownEntry = errors.New("activity entry not found")
	// ErrPanelClosed is returned by Select while the panel is hidden.
	ErrPanelClosed = errors.New("activity panel is closed")
)

// Feed is the server-side source of recent activity.
type Feed interface {
	Recent(ctx context.Context, limit int) ([]services.Activity, error)
}

// AllReader marks the whole notification store read.
type AllReader interface {
	MarkAllAsRead()
}

type Config struct {
	Limit int
	// MarkRead, when set, is marked fully read every time the panel opens.
	MarkRead AllReader
	Now      func() time.Time
}

// Entry is an activity item as the panel shows it.
type Entry struct {
	services.Activity
	Route    string `json:"route"`
	Relative string `json:"relative_time"`
}

// Center is safe for concurrent use.
type Center struct {
	mu   sync.Mutex
	open bool

	remote   *resource.Remote[[]services.Activity]
	markRead AllReader
	now      func() time.Time
	logger   *zap.Logger
}

func NewCenter(feed Feed, cfg Config, logger *zap.Logger) *Center {
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	limit := cfg.Limit
	fetch := func(ctx context.Context) ([]services.Activity, error) {
		return feed.Recent(ctx, limit)
	}

	return &Center{
		remote:   resource.NewRemote("activity", fetch, []services.Activity{}, logger),
		markRead: cfg.MarkRead,
		now:      cfg.Now,
		logger:   logger,
	}
}

// Open shows the panel and fetches the feed once. Opening an already open
// panel does not fetch again. A failed fetch leaves the panel empty.
func (c *Center) Open(ctx context.Context) []Entry {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return c.Entries()
	}
	c.open = true
	c.mu.Unlock()

	if c.markRead != nil {
		c.markRead.MarkAllAsRead()
	}

	return c.entries(c.remote.Load(ctx))
}

// Close hides the panel.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *Center) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// PointerDown handles a pointer press anywhere on the page. A press outside
// the open panel closes it; it reports whether it did.
func (c *Center) PointerDown(inside bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || inside {
		return false
	}
	c.open = false
	return true
}

// Entries returns the last fetched feed.
func (c *Center) Entries() []Entry {
	return c.entries(c.remote.Snapshot().Data)
}

// Snapshot exposes the fetch state (loading, failed) of the feed.
func (c *Center) Snapshot() resource.Snapshot[[]services.Activity] {
	return c.remote.Snapshot()
}

// Select resolves an entry of the open panel to its detail route and
// closes the panel.
func (c *Center) Select(id string) (string, error) {
	if !c.IsOpen() {
		return "", ErrPanelClosed
	}
	for _, e := range c.Entries() {
		if e.ID == id {
			c.Close()
			return e.Route, nil
		}
	}
	return "", ErrUnknownEntry
}

func (c *Center) entries(items []services.Activity) []Entry {
	now := c.now()
	out := make([]Entry, len(items))
	for i, a := range items {
		out[i] = Entry{
			Activity: a,
			Route:    DetailRoute(a),
			Relative: RelativeTime(now, a.Timestamp),
		}
	}
	return out
}

// DetailRoute maps an activity to the page showing its record.
func DetailRoute(a services.Activity) string {
	id := a.ResourceID
	if id == "" {
		id = a.ID
	}
	id = url.PathEscape(id)

	switch a.Type {
	case "scan":
		return "/scans/" + id
	case "project":
		return "/projects/" + id
	case "report":
		return "/reports/" + id
	case "integration":
		return "/integrations/" + id
	case "incident":
		return "/firewall/incidents/" + id
	default:
		return "/activity/" + url.PathEscape(a.ID)
	}
}
