package events

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink delivers events outside the process.
type Sink interface {
	Deliver(ctx context.Context, evt Event) error
	Close() error
}

// LogSink writes events to the service log. Used when no broker is configured.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Deliver(_ context.Context, evt Event) error {
	s.log.Info().
		Str("kind", string(evt.Kind)).
		Str("user_id", evt.UserID).
		Str("bucket_id", evt.BucketID).
		Str("activity_id", evt.ActivityID).
		Time("at", evt.At).
		Msg("domain event")
	return nil
}

func (s *LogSink) Close() error { return nil }
