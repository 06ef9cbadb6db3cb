package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a lifecycle event delivered by the platform.
type Kind string

const (
	KindRedisReady      Kind = "redis.container-ready"
	KindSentinelReady   Kind = "sentinel.container-ready"
	KindConfigChanged   Kind = "config.changed"
	KindLeaderElected   Kind = "leader.elected"
	KindPeerJoined      Kind = "peer.joined"
	KindPeerDeparted    Kind = "peer.departed"
	KindStorageAttached Kind = "storage.attached"
	KindUpgrade         Kind = "upgrade"
	KindScaleChanged    Kind = "scale.changed"
	KindUpdateStatus    Kind = "update.status"
)

var allKinds = []Kind{
	KindRedisReady,
	KindSentinelReady,
	KindConfigChanged,
	KindLeaderElected,
	KindPeerJoined,
	KindPeerDeparted,
	KindStorageAttached,
	KindUpgrade,
	KindScaleChanged,
	KindUpdateStatus,
}

// ParseKind converts a platform hook name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range allKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Kinds lists every recognized event kind.
func Kinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// Event is one lifecycle event.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time

	// DepartingAddress is set on peer.departed events: the address of the
	// unit being removed.
	DepartingAddress string
}

// New creates an event with a fresh ID.
func New(kind Kind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker serializes event delivery: the platform shim publishes, the
// reconcile loop consumes. One event is fully processed before the next.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
