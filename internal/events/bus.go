package events

import (
	"sync"
	"time"

	"github.com/Andrew920528/vibe-30/internal/observability"
)

// Kind names a domain event.
type Kind string

const (
	BucketCreated   Kind = "bucket.created"
	BucketUpdated   Kind = "bucket.updated"
	BucketDeleted   Kind = "bucket.deleted"
	ActivityAdded   Kind = "activity.added"
	ActivityRemoved Kind = "activity.removed"
)

// Event carries ids only; consumers read current state from the API.
type Event struct {
	Kind       Kind      `json:"kind"`
	UserID     string    `json:"userId"`
	BucketID   string    `json:"bucketId"`
	ActivityID string    `json:"activityId,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher accepts events without blocking. Publish reports whether the
// event was accepted.
type Publisher interface {
	Publish(evt Event) bool
}

// Bus is an in-process pub-sub backed by a buffered channel.
type Bus struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish enqueues evt, dropping it when the buffer is full or the bus is closed.
func (b *Bus) Publish(evt Event) bool {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		observability.RecordEvent(string(evt.Kind), "dropped")
		return false
	}
	select {
	case b.ch <- evt:
		observability.RecordEvent(string(evt.Kind), "published")
		return true
	default:
		observability.RecordEvent(string(evt.Kind), "dropped")
		return false
	}
}

// Subscribe returns the consumer side of the bus.
func (b *Bus) Subscribe() <-chan Event {
	return b.ch
}

// Close stops accepting events; buffered events remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) bool { return true }
