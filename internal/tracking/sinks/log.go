package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/hvac-leadsite/internal/tracking"
)

// Log writes each envelope as a structured log line. User data is never
// logged.
type Log struct {
	logger *zap.Logger
}

// NewLog wires a zap logger to the sink interface.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Name implements tracking.Sink.
func (l *Log) Name() string { return "log" }

// Send implements tracking.Sink.
func (l *Log) Send(_ context.Context, env tracking.Envelope) error {
	l.logger.Info("tracking event",
		zap.String("event_type", string(env.Event.Type())),
		zap.String("content_name", env.Event.Payload.ContentName()),
		zap.String("event_id", env.EventID),
		zap.String("key", env.Key),
		zap.String("session", env.Session),
		zap.String("source_url", env.Event.SourceURL),
		zap.Time("dispatched_at", env.DispatchedAt),
	)
	return nil
}
