package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscriber receives a project's workflow events.
type Subscriber struct {
	ID        string
	ProjectID string // "" subscribes to all projects
	Types     []Type // nil subscribes to all event types
	Ch        chan Event
	CreatedAt time.Time
}

// Broker manages event subscriptions and publishing.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      *slog.Logger
}

// NewBroker creates an event broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber filtered by project and optionally by
// event types. The channel is buffered; slow consumers lose events rather
// than block publishers.
func (b *Broker) Subscribe(projectID string, types ...Type) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Types:     types,
		Ch:        make(chan Event, 100),
		CreatedAt: time.Now(),
	}

	b.subscribers[sub.ID] = sub
	b.logger.Debug("event subscriber added",
		"subscriber_id", sub.ID,
		"project_id", projectID,
	)
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.ID]; exists {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("event subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish delivers the event to every matching subscriber. The timestamp
// is stamped here when the caller left it zero.
func (b *Broker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !matches(sub, event) {
			continue
		}
		select {
		case sub.Ch <- event:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"subscriber_id", sub.ID,
				"event_type", event.Type,
				"project_id", event.ProjectID,
			)
		}
	}
}

// matches checks the event against a subscriber's filters.
func matches(sub *Subscriber, event Event) bool {
	if sub.ProjectID != "" && sub.ProjectID != event.ProjectID {
		return false
	}
	if len(sub.Types) == 0 {
		return true
	}
	for _, t := range sub.Types {
		if t == event.Type {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
