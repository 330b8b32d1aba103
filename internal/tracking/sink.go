package tracking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Envelope is what a sink receives for one accepted event.
type Envelope struct {
	Event Event
	// EventID is shared by every sink so the ad platforms can de-duplicate
	// browser and server reports of the same action.
	EventID      string
	Key          string
	Session      string
	DispatchedAt time.Time

	link trace.Link
}

// Sink delivers envelopes to one provider. Implementations must honor ctx
// deadlines and be safe for concurrent use.
type Sink interface {
	Name() string
	Send(ctx context.Context, env Envelope) error
}

// Result records the outcome of one sink delivery.
type Result struct {
	Sink     string
	EventID  string
	Err      error
	Duration time.Duration
}

// OK reports whether the delivery succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, env Envelope) error
}

// Name returns the configured sink name.
func (f SinkFunc) Name() string { return f.SinkName }

// Send invokes the wrapped function.
func (f SinkFunc) Send(ctx context.Context, env Envelope) error { return f.Fn(ctx, env) }
