package factory

import (
	"github.com/rs/zerolog"

	"github.com/Andrew920528/vibe-30/internal/config"
	"github.com/Andrew920528/vibe-30/internal/events"
)

// NewEventSink returns a Kafka sink when brokers are configured and a log
// sink otherwise.
func NewEventSink(cfg *config.Config, log zerolog.Logger) events.Sink {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info().Msg("no kafka brokers configured; bucket events go to the log")
		return events.NewLogSink(log)
	}
	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("bucket events go to kafka")
	return events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
}
