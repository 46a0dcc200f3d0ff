package ports

import (
	"context"
	"time"
)

// Notification is a message for humans, delivered by email downstream.
type Notification struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"` // ordering key, e.g. the identity id
	Subject    string    `json:"subject"`
	Recipients []string  `json:"recipients"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notifier delivers a notification synchronously.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationQueue accepts notifications for asynchronous delivery.
// Enqueue never blocks; it reports false when the notification was dropped.
type NotificationQueue interface {
	Enqueue(n Notification) bool
}
