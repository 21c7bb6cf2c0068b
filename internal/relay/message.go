package relay

import (
	"time"

	"github.com/lalithlochan/sentinel/internal/notify"
)

// Message is the JSON body published to SNS and SQS.
type Message struct {
	NotificationID string    `json:"notification_id"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Link           string    `json:"link,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	RelayedAt      int64     `json:"relayed_at"`
}

func newMessage(n notify.Notification) Message {
	return Message{
		NotificationID: n.ID,
		Kind:           string(n.Kind),
		Title:          n.Title,
		Message:        n.Message,
		Link:           n.Link,
		CreatedAt:      n.CreatedAt,
		RelayedAt:      time.Now().UnixNano(),
	}
}
