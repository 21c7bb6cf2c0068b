package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind selects the icon and styling of a notification. It never changes
// behaviour.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindWarning, KindInfo:
		return true
	default:
		return false
	}
}

// Notification is an in-app, user-facing record of an event.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Link      string    `json:"link,omitempty"`
}

// newID is the creation timestamp plus a random suffix.
func newID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
