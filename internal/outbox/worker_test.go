package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andrew920528/vibe-30/internal/events"
)

// memQueue keeps rows in memory; failed rows are held back until release.
type memQueue struct {
	mu     sync.Mutex
	nextID int64
	rows   []*memRow
}

type memRow struct {
	Row
	done bool
	held bool
}

func (q *memQueue) Enqueue(_ context.Context, evt events.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.rows = append(q.rows, &memRow{Row: Row{ID: q.nextID, Event: evt}})
	return nil
}

func (q *memQueue) Lease(_ context.Context, limit int) (Lease, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l := &memLease{q: q, marks: map[int64]bool{}}
	blocked := map[string]bool{}
	for _, r := range q.rows {
		if len(l.rows) == limit {
			break
		}
		if r.done {
			continue
		}
		if !r.held && !blocked[r.Event.BucketID] {
			l.rows = append(l.rows, r.Row)
		}
		blocked[r.Event.BucketID] = true
	}
	return l, nil
}

func (q *memQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.rows {
		r.held = false
	}
}

func (q *memQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, r := range q.rows {
		if !r.done {
			n++
		}
	}
	return n
}

type memLease struct {
	q     *memQueue
	rows  []Row
	marks map[int64]bool // id -> delivered
}

func (l *memLease) Rows() []Row { return l.rows }

func (l *memLease) Done(_ context.Context, id int64) error {
	l.marks[id] = true
	return nil
}

func (l *memLease) Failed(_ context.Context, id int64) error {
	l.marks[id] = false
	return nil
}

func (l *memLease) Commit() error {
	l.q.mu.Lock()
	defer l.q.mu.Unlock()
	for _, r := range l.q.rows {
		ok, marked := l.marks[r.ID]
		switch {
		case !marked:
		case ok:
			r.done = true
		default:
			r.Attempts++
			r.held = true
		}
	}
	return nil
}

func (l *memLease) Rollback() error { return nil }

type flakySink struct {
	mu     sync.Mutex
	failOn string
	got    []events.Event
}

func (s *flakySink) Deliver(_ context.Context, evt events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evt.ActivityID == s.failOn {
		return errors.New("broker down")
	}
	s.got = append(s.got, evt)
	return nil
}

func (s *flakySink) Close() error { return nil }

func (s *flakySink) recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = ""
}

func (s *flakySink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, e := range s.got {
		out[i] = e.ActivityID
	}
	return out
}

func enqueue(t *testing.T, q Queue, bucketID string, activityIDs ...string) {
	t.Helper()
	for _, id := range activityIDs {
		require.NoError(t, q.Enqueue(context.Background(), events.Event{Kind: events.ActivityAdded, BucketID: bucketID, ActivityID: id}))
	}
}

func TestSink_ParksEvents(t *testing.T) {
	q := &memQueue{}
	require.NoError(t, NewSink(q).Deliver(context.Background(), events.Event{Kind: events.BucketCreated, BucketID: "b1"}))
	assert.Equal(t, 1, q.pending())
}

func TestWorker_DeliversInOrder(t *testing.T) {
	q := &memQueue{}
	ctx := context.Background()
	enqueue(t, q, "a", "a1")
	enqueue(t, q, "b", "b1")
	enqueue(t, q, "c", "c1")
	sink := &flakySink{}
	w := NewWorker(q, sink, Config{BatchSize: 2}, zerolog.Nop())

	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"a1", "b1", "c1"}, sink.delivered())
	assert.Zero(t, q.pending())
}

func TestWorker_OneRowPerBucketPerLease(t *testing.T) {
	q := &memQueue{}
	ctx := context.Background()
	enqueue(t, q, "a", "a1", "a2", "a3")
	sink := &flakySink{}
	w := NewWorker(q, sink, Config{BatchSize: 10}, zerolog.Nop())

	for i := 1; i <= 3; i++ {
		n, err := w.ProcessOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, sink.delivered())
}

func TestWorker_BackedOffRowHoldsBackItsBucket(t *testing.T) {
	q := &memQueue{}
	ctx := context.Background()
	enqueue(t, q, "x", "x1", "x2")
	enqueue(t, q, "y", "y1", "y2")
	sink := &flakySink{failOn: "x1"}
	w := NewWorker(q, sink, Config{BatchSize: 10}, zerolog.Nop())

	// x1 fails and backs off; later leases must not hand out x2 meanwhile
	for i := 0; i < 3; i++ {
		_, err := w.ProcessOnce(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"y1", "y2"}, sink.delivered())
	assert.Equal(t, 2, q.pending())
	assert.Equal(t, 1, q.rows[0].Attempts)

	// backoff elapsed and the broker recovered
	sink.recover()
	q.release()
	for i := 0; i < 2; i++ {
		_, err := w.ProcessOnce(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"y1", "y2", "x1", "x2"}, sink.delivered())
	assert.Zero(t, q.pending())
}

func TestWorker_RunDeliversUntilCancel(t *testing.T) {
	q := &memQueue{}
	sink := &flakySink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(q, sink, Config{Interval: 5 * time.Millisecond}, zerolog.Nop()).Run(ctx) }()

	enqueue(t, q, "z", "z1", "z2", "z3")
	require.Eventually(t, func() bool { return q.pending() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"z1", "z2", "z3"}, sink.delivered())
}
