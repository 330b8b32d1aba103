package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hvac-leadsite/internal/clock/fake"
	"github.com/JakeFAU/hvac-leadsite/internal/id/uuid"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	envs []Envelope
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, env Envelope) error {
	s.mu.Lock()
	s.envs = append(s.envs, env)
	s.mu.Unlock()
	return s.err
}

func (s *recordingSink) Envelopes() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.envs...)
}

type resultLog struct {
	mu      sync.Mutex
	results []Result
}

func (l *resultLog) add(r Result) {
	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
}

func (l *resultLog) all() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Result(nil), l.results...)
}

func newTestDispatcher(t *testing.T, clk Clock, results *resultLog, sinks ...Sink) *Dispatcher {
	t.Helper()
	cfg := Config{
		Enabled:    true,
		BufferSize: 16,
		Workers:    2,
		Clock:      clk,
		IDs:        uuid.New(),
	}
	if results != nil {
		cfg.OnResult = results.add
	}
	d, err := NewDispatcher(cfg, sinks...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func contactLead() Event {
	return Event{Payload: Lead{FormName: "Contact Form"}}
}

func TestNewDispatcherRequiresClockAndIDs(t *testing.T) {
	t.Parallel()

	_, err := NewDispatcher(Config{IDs: uuid.New()})
	require.Error(t, err)
	_, err = NewDispatcher(Config{Clock: fake.New(epoch)})
	require.Error(t, err)
}

func TestDispatchThrottlesWithinWindow(t *testing.T) {
	t.Parallel()

	clk := fake.New(epoch)
	d := newTestDispatcher(t, clk, nil)
	ctx := context.Background()

	require.True(t, d.Dispatch(ctx, "s1", contactLead()))
	clk.Advance(500 * time.Millisecond)
	require.False(t, d.Dispatch(ctx, "s1", contactLead()))
	clk.Advance(1600 * time.Millisecond)
	require.True(t, d.Dispatch(ctx, "s1", contactLead()))

	rec, ok := d.Sessions().Table("s1").Lookup("lead:contact-form")
	require.True(t, ok)
	require.Equal(t, epoch.Add(2100*time.Millisecond), rec.LastFired)
	require.Equal(t, TypeLead, rec.EventType)
	require.Equal(t, "Contact Form", rec.ContentName)
}

func TestDispatchSuppressedCallLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	clk := fake.New(epoch)
	d := newTestDispatcher(t, clk, nil)
	ctx := context.Background()

	require.True(t, d.Dispatch(ctx, "s1", contactLead()))
	clk.Advance(1999 * time.Millisecond)
	require.False(t, d.Dispatch(ctx, "s1", contactLead()))
	clk.Advance(time.Millisecond)
	require.True(t, d.Dispatch(ctx, "s1", contactLead()))
}

func TestDispatchBarePageViewNeverThrottled(t *testing.T) {
	t.Parallel()

	clk := fake.New(epoch)
	sink := &recordingSink{name: "pixel"}
	d := newTestDispatcher(t, clk, nil, sink)

	for range 10 {
		require.True(t, d.Dispatch(context.Background(), "s1", Event{Payload: PageView{Path: "/"}}))
	}
	require.NoError(t, d.Close(context.Background()))
	require.Len(t, sink.Envelopes(), 10)
	require.Zero(t, d.Sessions().Len())
}

func TestDispatchTitledPageViewIsThrottled(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, fake.New(epoch), nil)
	evt := Event{Payload: PageView{Path: "/about", Title: "About Us"}}
	require.True(t, d.Dispatch(context.Background(), "s1", evt))
	require.False(t, d.Dispatch(context.Background(), "s1", evt))
}

func TestDispatchDisabledInvokesNoSink(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "relay"}
	d, err := NewDispatcher(Config{Clock: fake.New(epoch), IDs: uuid.New()}, sink)
	require.NoError(t, err)

	require.False(t, d.Enabled())
	require.False(t, d.Dispatch(context.Background(), "s1", contactLead()))
	require.False(t, d.Dispatch(context.Background(), "s1", Event{Payload: PageView{}}))
	require.NoError(t, d.Close(context.Background()))
	require.Empty(t, sink.Envelopes())
}

func TestDispatchSinkIsolation(t *testing.T) {
	t.Parallel()

	results := &resultLog{}
	relay := &recordingSink{name: "relay", err: errors.New("relay unavailable")}
	pixel := &recordingSink{name: "pixel"}
	analytics := &recordingSink{name: "analytics"}
	panicky := SinkFunc{SinkName: "panicky", Fn: func(context.Context, Envelope) error {
		panic("boom")
	}}
	d := newTestDispatcher(t, fake.New(epoch), results, relay, panicky, pixel, analytics)

	require.True(t, d.Dispatch(context.Background(), "s1", contactLead()))
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, relay.Envelopes(), 1)
	require.Len(t, pixel.Envelopes(), 1)
	require.Len(t, analytics.Envelopes(), 1)
	require.Equal(t, pixel.Envelopes()[0].EventID, analytics.Envelopes()[0].EventID)

	byName := map[string]Result{}
	for _, r := range results.all() {
		byName[r.Sink] = r
	}
	require.Len(t, byName, 4)
	require.EqualError(t, byName["relay"].Err, "relay unavailable")
	require.ErrorIs(t, byName["panicky"].Err, ErrSinkPanic)
	require.True(t, byName["pixel"].OK())
	require.True(t, byName["analytics"].OK())
}

func TestDispatchSinkTimeout(t *testing.T) {
	t.Parallel()

	results := &resultLog{}
	slow := SinkFunc{SinkName: "slow", Fn: func(ctx context.Context, _ Envelope) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	d, err := NewDispatcher(Config{
		Enabled:     true,
		SinkTimeout: 20 * time.Millisecond,
		Clock:       fake.New(epoch),
		IDs:         uuid.New(),
		OnResult:    results.add,
	}, slow)
	require.NoError(t, err)

	require.True(t, d.Dispatch(context.Background(), "s1", contactLead()))
	require.NoError(t, d.Close(context.Background()))
	require.Len(t, results.all(), 1)
	require.ErrorIs(t, results.all()[0].Err, context.DeadlineExceeded)
}

func TestDispatchUniqueIDUsedVerbatim(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{name: "relay"}
	d := newTestDispatcher(t, fake.New(epoch), nil, sink)

	first := contactLead()
	first.UniqueID = "lead-0001"
	second := contactLead()
	second.UniqueID = "lead-0002"
	require.True(t, d.Dispatch(context.Background(), "s1", first))
	require.True(t, d.Dispatch(context.Background(), "s1", second))
	require.False(t, d.Dispatch(context.Background(), "s1", first))
	require.NoError(t, d.Close(context.Background()))

	envs := sink.Envelopes()
	require.Len(t, envs, 2)
	ids := []string{envs[0].EventID, envs[1].EventID}
	require.ElementsMatch(t, []string{"lead-0001", "lead-0002"}, ids)
	for _, env := range envs {
		require.Equal(t, env.EventID, env.Key)
		require.Equal(t, "s1", env.Session)
		require.Equal(t, epoch, env.DispatchedAt)
		require.Equal(t, epoch, env.Event.OccurredAt)
	}
}

func TestDispatchSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, fake.New(epoch), nil)
	ctx := context.Background()
	require.True(t, d.Dispatch(ctx, "visitor-a", contactLead()))
	require.True(t, d.Dispatch(ctx, "visitor-b", contactLead()))
	require.False(t, d.Dispatch(ctx, "visitor-a", contactLead()))
	require.Equal(t, 2, d.Sessions().Len())
}

func TestDispatchRejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, fake.New(epoch), nil)
	require.False(t, d.Dispatch(context.Background(), "s1", Event{}))
	require.False(t, d.Dispatch(context.Background(), "s1", Event{Payload: Lead{}}))
	require.False(t, d.Dispatch(context.Background(), "s1", Event{Payload: Engagement{Milestone: "50%"}}))
	require.Zero(t, d.Sessions().Len())
}

func TestDispatchAfterCloseIsRejected(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, fake.New(epoch), nil)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
	require.False(t, d.Dispatch(context.Background(), "s1", contactLead()))
}

func TestDispatchConcurrentCallersFireOnce(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, fake.New(epoch), nil)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Dispatch(context.Background(), "s1", contactLead()) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, accepted)
}

func TestDispatcherJanitorPurgesStaleRecords(t *testing.T) {
	t.Parallel()

	clk := fake.New(epoch)
	d := newTestDispatcher(t, clk, nil)
	require.True(t, d.Dispatch(context.Background(), "s1", contactLead()))
	require.Equal(t, 1, d.Sessions().Len())

	clk.Advance(31 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.RunJanitor(ctx, 5*time.Millisecond, 30*time.Minute)

	require.Eventually(t, func() bool {
		return d.Sessions().Len() == 0
	}, time.Second, 5*time.Millisecond)
	require.True(t, d.Dispatch(context.Background(), "s1", contactLead()))
}
