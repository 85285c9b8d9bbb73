// Package timers provides named, cancelable delayed callbacks for phase
// progression. At most one timer exists per key; scheduling under an existing
// key replaces the old timer without double-firing.
package timers

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DeadlineSink receives the absolute deadline of the most recently scheduled
// timer, so the game state can answer time-remaining queries.
type DeadlineSink interface {
	SetPhaseDeadline(key string, deadline time.Time)
	ClearPhaseDeadline(key string)
}

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler owns the outstanding phase timers of one game instance.
type Scheduler struct {
	mu        sync.Mutex
	entries   map[string]*entry
	deadlines map[string]time.Time
	nextGen   uint64

	sink DeadlineSink // optional
	log  zerolog.Logger
}

func NewScheduler(log zerolog.Logger, sink DeadlineSink) *Scheduler {
	return &Scheduler{
		entries:   make(map[string]*entry),
		deadlines: make(map[string]time.Time),
		sink:      sink,
		log:       log,
	}
}

// Schedule arranges for fn to run once after d, replacing any timer already
// registered under key. It returns the absolute deadline.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) time.Time {
	deadline := time.Now().Add(d)

	s.mu.Lock()
	if old, ok := s.entries[key]; ok {
		old.timer.Stop()
	}
	s.nextGen++
	gen := s.nextGen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(d, func() { s.fire(key, gen, fn) })
	s.entries[key] = e
	s.deadlines[key] = deadline
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.SetPhaseDeadline(key, deadline)
	}
	s.log.Debug().Str("timer", key).Dur("duration", d).Msg("phase timer set")
	return deadline
}

// fire runs the callback if the timer is still current. A timer replaced or
// canceled after its goroutine started is a stale generation and is dropped.
func (s *Scheduler) fire(key string, gen uint64, fn func()) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, key)
	delete(s.deadlines, key)
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.ClearPhaseDeadline(key)
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("timer", key).Interface("panic", r).Msg("phase timer callback panicked")
		}
	}()
	fn()
}

// Cancel stops the timer under key if present and clears its deadline.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		e.timer.Stop()
		delete(s.entries, key)
		delete(s.deadlines, key)
	}
	s.mu.Unlock()

	if ok {
		if s.sink != nil {
			s.sink.ClearPhaseDeadline(key)
		}
		s.log.Debug().Str("timer", key).Msg("phase timer canceled")
	}
}

// CancelAll stops every outstanding timer. Used on cleanup and game end.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key, e := range s.entries {
		e.timer.Stop()
		keys = append(keys, key)
	}
	s.entries = make(map[string]*entry)
	s.deadlines = make(map[string]time.Time)
	s.mu.Unlock()

	for _, key := range keys {
		if s.sink != nil {
			s.sink.ClearPhaseDeadline(key)
		}
	}
	if len(keys) > 0 {
		s.log.Debug().Int("count", len(keys)).Msg("all phase timers canceled")
	}
}

// Deadline reports the absolute deadline of the timer under key, if any.
func (s *Scheduler) Deadline(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.deadlines[key]
	return deadline, ok
}

// Active returns the number of outstanding timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
