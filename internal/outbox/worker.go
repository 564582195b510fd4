package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/events"
	"github.com/Andrew920528/vibe-30/internal/observability"
)

// Config controls batch size and polling cadence.
type Config struct {
	BatchSize       int           // rows to lease per cycle
	Interval        time.Duration // poll interval
	DeliveryTimeout time.Duration // per event
}

// Worker leases parked events and hands them to a downstream sink.
type Worker struct {
	q    Queue
	sink events.Sink
	cfg  Config
	log  zerolog.Logger
}

func NewWorker(q Queue, sink events.Sink, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}
	return &Worker{q: q, sink: sink, cfg: cfg, log: log}
}

// Run polls until ctx is canceled. Each tick drains every row that is
// ready; a lease yields one row per bucket, so a burst on one bucket takes
// several leases.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("outbox worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.ProcessOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// per-row backoff prevents hot-looping
			w.log.Error().Err(err).Msg("outbox process")
			return
		}
		if n == 0 {
			return
		}
	}
}

// ProcessOnce delivers one lease and reports how many rows were delivered.
// A failed row backs off and, being its bucket's oldest, keeps the bucket's
// later rows out of every lease until it is delivered.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	lease, err := w.q.Lease(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	defer func() { _ = lease.Rollback() }()

	delivered := 0
	for _, r := range lease.Rows() {
		if err := w.deliver(ctx, r); err != nil {
			w.log.Warn().Err(err).
				Int64("id", r.ID).
				Int("attempts", r.Attempts+1).
				Str("kind", string(r.Event.Kind)).
				Str("bucket_id", r.Event.BucketID).
				Msg("outbox delivery failed")
			if e := lease.Failed(ctx, r.ID); e != nil {
				return delivered, e
			}
			continue
		}
		if err := lease.Done(ctx, r.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, lease.Commit()
}

func (w *Worker) deliver(ctx context.Context, r Row) error {
	dctx, cancel := context.WithTimeout(ctx, w.cfg.DeliveryTimeout)
	defer cancel()
	if err := w.sink.Deliver(dctx, r.Event); err != nil {
		observability.RecordEvent(string(r.Event.Kind), "failed")
		return err
	}
	observability.RecordEvent(string(r.Event.Kind), "delivered")
	return nil
}
