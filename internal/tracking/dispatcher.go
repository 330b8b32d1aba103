package tracking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/hvac-leadsite/internal/telemetry"
)

// IDGenerator produces event ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config controls throttling and delivery for the Dispatcher.
//   - Enabled: when false Dispatch returns false and no sink is invoked.
//   - ThrottleWindow: minimum spacing between fires of one key (default 2s).
//   - MaxKeys: per-session throttle table bound (default 512).
//   - SinkTimeout: per-sink deadline for one delivery (default 5s).
//   - BufferSize: accepted envelopes waiting for a worker (default 1024).
//   - Workers: concurrent deliveries (default 4).
//   - BaseContext: parent context for sink calls (defaults to context.Background()).
//   - Clock, IDs: time and event id sources (required).
//   - Logger: optional structured logger.
//   - OnResult: optional hook observing every sink Result.
type Config struct {
	Enabled        bool
	ThrottleWindow time.Duration
	MaxKeys        int
	SinkTimeout    time.Duration
	BufferSize     int
	Workers        int
	BaseContext    context.Context
	Clock          Clock
	IDs            IDGenerator
	Logger         *zap.Logger
	OnResult       func(Result)
}

const (
	defaultSinkTimeout = 5 * time.Second
	defaultBufferSize  = 1024
	defaultWorkers     = 4
	dropLogInterval    = 5 * time.Second
)

// ErrSinkPanic wraps a panic recovered from a sink.
var ErrSinkPanic = errors.New("sink panicked")

// Dispatcher throttles events per session and fans accepted ones out to
// every sink on a background worker pool. Dispatch never blocks on sinks.
type Dispatcher struct {
	cfg         Config
	sinks       []Sink
	sessions    *Sessions
	queue       chan Envelope
	stopCh      chan struct{}
	doneCh      chan struct{}
	wg          sync.WaitGroup
	logger      *zap.Logger
	tracer      trace.Tracer
	dropLimiter rateLimiter
	dropped     atomic.Int64
	closed      atomic.Bool
	closeOnce   sync.Once
}

// NewDispatcher validates cfg and starts the delivery workers.
func NewDispatcher(cfg Config, sinks ...Sink) (*Dispatcher, error) {
	if cfg.Clock == nil {
		return nil, errors.New("dispatcher clock is required")
	}
	if cfg.IDs == nil {
		return nil, errors.New("dispatcher id generator is required")
	}
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = DefaultThrottleWindow
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	d := &Dispatcher{
		cfg:         cfg,
		sinks:       active,
		sessions:    NewSessions(cfg.ThrottleWindow, cfg.MaxKeys),
		queue:       make(chan Envelope, cfg.BufferSize),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger,
		tracer:      otel.Tracer("github.com/JakeFAU/hvac-leadsite/internal/tracking"),
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	for range cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	go func() {
		d.wg.Wait()
		close(d.doneCh)
	}()
	return d, nil
}

// Enabled reports whether Dispatch forwards events at all.
func (d *Dispatcher) Enabled() bool {
	return d != nil && d.cfg.Enabled
}

// Sessions exposes the throttle registry.
func (d *Dispatcher) Sessions() *Sessions {
	return d.sessions
}

// RunJanitor purges throttle records older than retention every interval
// until ctx is done.
func (d *Dispatcher) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	d.sessions.RunJanitor(ctx, d.cfg.Clock, interval, retention, d.logger)
}

// SinkNames lists the configured sinks in fan-out order.
func (d *Dispatcher) SinkNames() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Dispatch reports whether evt was accepted for delivery. It returns false
// when tracking is disabled, the dispatcher is closed, the event is invalid,
// or the event key fired within the throttle window for this session. Sink
// failures never affect the return value.
func (d *Dispatcher) Dispatch(ctx context.Context, session string, evt Event) bool {
	if !d.Enabled() || d.closed.Load() {
		return false
	}
	if err := evt.Validate(); err != nil {
		d.logger.Debug("discarding invalid tracking event", zap.Error(err))
		return false
	}
	now := d.cfg.Clock.Now()
	key, exempt := EventKey(evt)
	if !exempt {
		admitted := d.sessions.Admit(session, TrackedEvent{
			Key:         key,
			LastFired:   now,
			EventType:   evt.Type(),
			ContentName: evt.Payload.ContentName(),
		})
		if !admitted {
			telemetry.ObserveTrackingEvent(string(evt.Type()), "throttled")
			d.logger.Debug("tracking event throttled",
				zap.String("key", key),
				zap.String("session", session),
			)
			return false
		}
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = now
	}
	env := Envelope{
		Event:        evt,
		EventID:      d.eventID(evt, key, now),
		Key:          key,
		Session:      session,
		DispatchedAt: now,
		link:         trace.LinkFromContext(ctx),
	}
	telemetry.ObserveTrackingEvent(string(evt.Type()), "accepted")
	d.enqueue(env)
	return true
}

func (d *Dispatcher) eventID(evt Event, key string, now time.Time) string {
	if evt.UniqueID != "" {
		return evt.UniqueID
	}
	id, err := d.cfg.IDs.NewID()
	if err != nil {
		d.logger.Warn("event id generation failed", zap.Error(err))
		return key + "-" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	return id
}

func (d *Dispatcher) enqueue(env Envelope) {
	select {
	case d.queue <- env:
	default:
		d.dropped.Add(1)
		telemetry.ObserveTrackingEvent(string(env.Event.Type()), "dropped")
		if d.dropLimiter.Allow(time.Now()) {
			count := d.dropped.Swap(0)
			d.logger.Warn("tracking deliveries dropped due to backpressure", zap.Int64("dropped", count))
		}
	}
}

// Close stops accepting events, drains queued deliveries and blocks until
// the workers exit or ctx is done. It is safe to call multiple times.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stopCh)
	})
	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tracking dispatcher close wait: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case env := <-d.queue:
			d.deliver(env)
		case <-d.stopCh:
			for {
				select {
				case env := <-d.queue:
					d.deliver(env)
				default:
					return
				}
			}
		}
	}
}

// deliver sends env to every sink concurrently and waits for all of them.
func (d *Dispatcher) deliver(env Envelope) {
	ctx, span := d.tracer.Start(d.cfg.BaseContext, "tracking.deliver",
		trace.WithLinks(env.link),
		trace.WithAttributes(
			attribute.String("tracking.event_type", string(env.Event.Type())),
			attribute.String("tracking.event_id", env.EventID),
		),
	)
	defer span.End()

	var g errgroup.Group
	var failed atomic.Int32
	for _, s := range d.sinks {
		g.Go(func() error {
			if res := d.send(ctx, s, env); !res.OK() {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if n := failed.Load(); n > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d sink(s) failed", n))
	}
}

func (d *Dispatcher) send(ctx context.Context, s Sink, env Envelope) (res Result) {
	start := time.Now()
	res = Result{Sink: s.Name(), EventID: env.EventID}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
		res.Duration = time.Since(start)
		d.record(res, env)
	}()
	sctx, cancel := context.WithTimeout(ctx, d.cfg.SinkTimeout)
	defer cancel()
	res.Err = s.Send(sctx, env)
	return res
}

func (d *Dispatcher) record(res Result, env Envelope) {
	outcome := "success"
	if res.Err != nil {
		outcome = "error"
		d.logger.Warn("tracking sink delivery failed",
			zap.String("sink", res.Sink),
			zap.String("event_type", string(env.Event.Type())),
			zap.String("event_id", res.EventID),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err),
		)
	}
	telemetry.ObserveSinkDelivery(res.Sink, outcome, res.Duration)
	if d.cfg.OnResult != nil {
		d.cfg.OnResult(res)
	}
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
