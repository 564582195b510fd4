package outbox

import (
	"context"

	"github.com/Andrew920528/vibe-30/internal/events"
)

// Row is one parked event.
type Row struct {
	ID       int64
	Event    events.Event
	Attempts int
}

// Lease holds a locked batch of ready rows, at most one per bucket: the
// oldest undelivered one. Marks take effect on Commit; rows left unmarked
// return to the queue unchanged.
type Lease interface {
	Rows() []Row
	Done(ctx context.Context, id int64) error
	Failed(ctx context.Context, id int64) error
	Commit() error
	Rollback() error
}

// Queue is durable event storage shared by the server and the worker.
type Queue interface {
	Enqueue(ctx context.Context, evt events.Event) error
	Lease(ctx context.Context, limit int) (Lease, error)
}

// Sink parks events in a Queue instead of delivering them, so the relay
// hands off to durable storage and the worker owns delivery.
type Sink struct {
	q Queue
}

var _ events.Sink = (*Sink)(nil)

func NewSink(q Queue) *Sink { return &Sink{q: q} }

func (s *Sink) Deliver(ctx context.Context, evt events.Event) error {
	return s.q.Enqueue(ctx, evt)
}

func (s *Sink) Close() error { return nil }
