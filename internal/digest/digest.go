// Package digest mails the operator a summary of unread notifications on a
// fixed interval.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/metrics"
	"github.com/lalithlochan/sentinel/internal/notify"
)

// Source is the notification list.
type Source interface {
	List() []notify.Notification
}

// Recipient yields the signed-in operator's address, empty when signed out.
type Recipient interface {
	Email() string
}

type Config struct {
	Interval time.Duration
	// MaxItems caps the lines listed in one mail. Default 10.
	MaxItems int
	Clock    clockwork.Clock
}

type Digester struct {
	src       Source
	recipient Recipient
	mailer    Mailer
	config    Config
	logger    *zap.Logger

	mu sync.Mutex
	// last is the creation time of the newest notification already mailed.
	last time.Time
}

// New starts the watermark at construction time: what is unread at startup
// is not mailed.
func New(src Source, recipient Recipient, mailer Mailer, cfg Config, logger *zap.Logger) *Digester {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 10
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Digester{
		src:       src,
		recipient: recipient,
		mailer:    mailer,
		config:    cfg,
		logger:    logger,
		last:      cfg.Clock.Now(),
	}
}

func (d *Digester) Start(ctx context.Context) {
	ticker := d.config.Clock.NewTicker(d.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("digest stopping")
			return
		case <-ticker.Chan():
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error("failed to send digest", zap.Error(err))
			}
		}
	}
}

// RunOnce sends at most one digest and reports whether it did.
func (d *Digester) RunOnce(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	to := d.recipient.Email()
	if to == "" {
		return false, nil
	}

	pending := d.pendingLocked()
	if len(pending) == 0 {
		return false, nil
	}

	subject, body := compose(pending, d.config.MaxItems)
	if err := d.mailer.Send(ctx, to, subject, body); err != nil {
		metrics.RecordDigest("failed")
		return false, err
	}

	// pending is newest first
	d.last = pending[0].CreatedAt
	metrics.RecordDigest("sent")
	d.logger.Info("digest sent",
		zap.String("to", to),
		zap.Int("unread", len(pending)),
	)
	return true, nil
}

func (d *Digester) pendingLocked() []notify.Notification {
	var out []notify.Notification
	for _, n := range d.src.List() {
		if !n.Read && n.CreatedAt.After(d.last) {
			out = append(out, n)
		}
	}
	return out
}

func compose(pending []notify.Notification, max int) (string, string) {
	subject := "1 unread notification in Sentinel"
	if len(pending) != 1 {
		subject = fmt.Sprintf("%d unread notifications in Sentinel", len(pending))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %s.\n\n", strings.TrimSuffix(subject, " in Sentinel"))
	for i, n := range pending {
		if i == max {
			fmt.Fprintf(&b, "...and %d more.\n", len(pending)-max)
			break
		}
		fmt.Fprintf(&b, "- [%s] %s", n.Kind, n.Title)
		if n.Message != "" {
			fmt.Fprintf(&b, ": %s", n.Message)
		}
		if n.Link != "" {
			fmt.Fprintf(&b, " (%s)", n.Link)
		}
		b.WriteString("\n")
	}
	return subject, b.String()
}
