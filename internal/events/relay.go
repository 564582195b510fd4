package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/observability"
)

// Relay drains a bus into a sink. Delivery failures are logged and counted;
// events are notifications and never fail the request that produced them.
type Relay struct {
	bus     *Bus
	sink    Sink
	log     zerolog.Logger
	timeout time.Duration
}

func NewRelay(bus *Bus, sink Sink, log zerolog.Logger) *Relay {
	return &Relay{bus: bus, sink: sink, log: log, timeout: 5 * time.Second}
}

// Run forwards events until ctx is done or the bus is closed. Events still
// buffered when ctx ends are flushed with a short deadline.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Info().Msg("event relay starting")
	ch := r.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			r.drain(ch)
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, evt)
		}
	}
}

func (r *Relay) drain(ch <-chan Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(ctx, evt)
		default:
			return
		}
	}
}

func (r *Relay) deliver(ctx context.Context, evt Event) {
	dctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.sink.Deliver(dctx, evt); err != nil {
		observability.RecordEvent(string(evt.Kind), "failed")
		r.log.Error().Stack().Err(err).
			Str("kind", string(evt.Kind)).
			Str("bucket_id", evt.BucketID).
			Msg("event delivery failed")
		return
	}
	observability.RecordEvent(string(evt.Kind), "delivered")
}
