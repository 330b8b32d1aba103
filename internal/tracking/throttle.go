package tracking

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Defaults for the throttle state.
const (
	DefaultThrottleWindow  = 2000 * time.Millisecond
	DefaultRetention       = 30 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
	DefaultMaxKeys         = 512
)

// EventKey derives the throttle key for evt. A caller-supplied UniqueID is
// used verbatim; otherwise the key is "type:content name" lowercased with
// whitespace runs collapsed to hyphens. exempt is true for a bare page view,
// which is never throttled.
func EventKey(evt Event) (key string, exempt bool) {
	if evt.UniqueID != "" {
		return evt.UniqueID, false
	}
	t := evt.Type()
	name := strings.TrimSpace(evt.Payload.ContentName())
	if t == TypePageView && name == "" {
		return string(TypePageView), true
	}
	return strings.Join(strings.Fields(strings.ToLower(string(t)+":"+name)), "-"), false
}

// TrackedEvent is the throttle record of the last fire of a key.
type TrackedEvent struct {
	Key         string
	LastFired   time.Time
	EventType   EventType
	ContentName string
}

// ThrottleTable remembers when each key last fired. It is safe for
// concurrent use.
type ThrottleTable struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	entries map[string]TrackedEvent
}

// NewThrottleTable returns an empty table. Non-positive arguments select the
// defaults.
func NewThrottleTable(window time.Duration, maxKeys int) *ThrottleTable {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &ThrottleTable{
		window:  window,
		maxKeys: maxKeys,
		entries: make(map[string]TrackedEvent),
	}
}

// Admit reports whether ev may fire at ev.LastFired. A key that fired less
// than the window ago is suppressed and its record left untouched; otherwise
// the record is overwritten. When a new key would exceed the bound, the
// least recently fired key is evicted.
func (t *ThrottleTable) Admit(ev TrackedEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.entries[ev.Key]; ok {
		if ev.LastFired.Sub(prev.LastFired) < t.window {
			return false
		}
	} else if len(t.entries) >= t.maxKeys {
		t.evictOldestLocked()
	}
	t.entries[ev.Key] = ev
	return true
}

func (t *ThrottleTable) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, e := range t.entries {
		if !found || e.LastFired.Before(oldest) || (e.LastFired.Equal(oldest) && k < oldestKey) {
			oldestKey, oldest, found = k, e.LastFired, true
		}
	}
	if found {
		delete(t.entries, oldestKey)
	}
}

// Lookup returns the record for key.
func (t *ThrottleTable) Lookup(key string) (TrackedEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ev, ok := t.entries[key]
	return ev, ok
}

// Purge removes records that last fired before cutoff and returns how many
// were removed.
func (t *ThrottleTable) Purge(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, e := range t.entries {
		if e.LastFired.Before(cutoff) {
			delete(t.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (t *ThrottleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sessions owns one ThrottleTable per session id so visitors never throttle
// each other.
type Sessions struct {
	mu      sync.RWMutex
	window  time.Duration
	maxKeys int
	tables  map[string]*ThrottleTable
}

// NewSessions returns an empty registry whose tables use window and maxKeys.
func NewSessions(window time.Duration, maxKeys int) *Sessions {
	return &Sessions{
		window:  window,
		maxKeys: maxKeys,
		tables:  make(map[string]*ThrottleTable),
	}
}

// Table returns the table for session, creating it on first use.
func (s *Sessions) Table(session string) *ThrottleTable {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[session]
	if !ok {
		t = NewThrottleTable(s.window, s.maxKeys)
		s.tables[session] = t
	}
	return t
}

// Admit runs ev through the table of session. Purge cannot discard the
// table while an admission is in flight.
func (s *Sessions) Admit(session string, ev TrackedEvent) bool {
	s.mu.RLock()
	if t, ok := s.tables[session]; ok {
		defer s.mu.RUnlock()
		return t.Admit(ev)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[session]
	if !ok {
		t = NewThrottleTable(s.window, s.maxKeys)
		s.tables[session] = t
	}
	return t.Admit(ev)
}

// Purge drops records older than cutoff from every table and discards
// tables left empty. It returns the number of records removed.
func (s *Sessions) Purge(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tables {
		removed += t.Purge(cutoff)
		if t.Len() == 0 {
			delete(s.tables, id)
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}

// RunJanitor purges records older than retention every interval until ctx
// is done.
func (s *Sessions) RunJanitor(ctx context.Context, clock Clock, interval, retention time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Purge(clock.Now().Add(-retention))
			if removed > 0 {
				logger.Debug("throttle records purged",
					zap.Int("removed", removed),
					zap.Int("sessions", s.Len()),
				)
			}
		}
	}
}
