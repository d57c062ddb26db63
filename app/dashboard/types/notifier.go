package types

import (
	"context"
	"sync"
	"time"

	"github.com/debaseonomics/debasex/pkg/redis"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification kinds.
const (
	KindSuccess = "success"
	KindDanger  = "danger"
)

// Notification is a transient message shown after a write action. ID is unique across
// instances sharing the Redis history.
type Notification struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Publisher fans notifications out to other instances; *redis.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{})
	Append(ctx context.Context, payload string) string
}

// Notifier keeps the most recent notifications in memory and forwards each to the Publisher.
type Notifier struct {
	limit  int
	pub    Publisher
	logger *zap.Logger

	mu    sync.RWMutex
	items []Notification
}

// NewNotifier creates a Notifier. pub may be nil.
func NewNotifier(limit int, pub Publisher, logger *zap.Logger) *Notifier {
	if limit <= 0 {
		limit = redis.DefaultNotificationHistory
	}
	return &Notifier{limit: limit, pub: pub, logger: logger}
}

// Notify records and publishes a notification.
func (n *Notifier) Notify(ctx context.Context, kind, message string) Notification {
	item := Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: message,
		At:      time.Now().UTC(),
	}

	n.mu.Lock()
	n.items = append(n.items, item)
	if over := len(n.items) - n.limit; over > 0 {
		n.items = append([]Notification(nil), n.items[over:]...)
	}
	n.mu.Unlock()

	n.logger.Info("Notification", zap.String("kind", kind), zap.String("message", message))

	if n.pub != nil {
		payload, err := json.Marshal(item)
		if err != nil {
			n.logger.Warn("Failed to encode notification", zap.Error(err))
			return item
		}
		n.pub.Publish(ctx, redis.Channel(redis.TopicNotification), string(payload))
		n.pub.Append(ctx, string(payload))
	}
	return item
}

// Recent returns the retained notifications, oldest first.
func (n *Notifier) Recent() []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notification, len(n.items))
	copy(out, n.items)
	return out
}
