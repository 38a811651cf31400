package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the application log. Used when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, eventType, key string, payload []byte) error {
	p.log.Info().Str("event", eventType).Str("key", key).RawJSON("payload", payload).Msg("ledger event")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
