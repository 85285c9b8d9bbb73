package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(zerolog.Nop(), nil)
}

func TestScheduleFiresOnce(t *testing.T) {
	s := newTestScheduler()
	var fired atomic.Int32

	s.Schedule("voting-1", 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, s.Active())
}

func TestScheduleReplacesExistingTimer(t *testing.T) {
	s := newTestScheduler()
	var old, replacement atomic.Int32

	s.Schedule("discussion-1", 20*time.Millisecond, func() { old.Add(1) })
	s.Schedule("discussion-1", 40*time.Millisecond, func() { replacement.Add(1) })
	assert.Equal(t, 1, s.Active())

	require.Eventually(t, func() bool { return replacement.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), old.Load(), "replaced timer must not fire")
}

func TestCancelPreventsFiring(t *testing.T) {
	s := newTestScheduler()
	var fired atomic.Int32

	s.Schedule("joinWindow", 20*time.Millisecond, func() { fired.Add(1) })
	s.Cancel("joinWindow")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	_, ok := s.Deadline("joinWindow")
	assert.False(t, ok)
}

func TestCancelAbsentKeyIsNoop(t *testing.T) {
	s := newTestScheduler()
	assert.NotPanics(t, func() { s.Cancel("nothing-here") })
}

func TestCancelAll(t *testing.T) {
	s := newTestScheduler()
	var fired atomic.Int32

	s.Schedule("taskAndKillPhase-1", 20*time.Millisecond, func() { fired.Add(1) })
	s.Schedule("discussion-1", 20*time.Millisecond, func() { fired.Add(1) })
	s.Schedule("voting-1", 20*time.Millisecond, func() { fired.Add(1) })
	assert.Equal(t, 3, s.Active())

	s.CancelAll()
	assert.Equal(t, 0, s.Active())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestCallbackPanicIsContainedAndSlotReleased(t *testing.T) {
	s := newTestScheduler()
	var after atomic.Int32

	s.Schedule("voting-1", 5*time.Millisecond, func() { panic("boom") })
	require.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, time.Millisecond)

	// The key is free for reuse after the panic.
	s.Schedule("voting-1", 5*time.Millisecond, func() { after.Add(1) })
	require.Eventually(t, func() bool { return after.Load() == 1 }, time.Second, time.Millisecond)
}

func TestDeadlineIsRecordedWhileActive(t *testing.T) {
	s := newTestScheduler()

	before := time.Now()
	s.Schedule("discussion-2", 500*time.Millisecond, func() {})

	deadline, ok := s.Deadline("discussion-2")
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(500*time.Millisecond), deadline, 100*time.Millisecond)
}

type recordingSink struct {
	set     atomic.Int32
	cleared atomic.Int32
}

func (r *recordingSink) SetPhaseDeadline(string, time.Time) { r.set.Add(1) }
func (r *recordingSink) ClearPhaseDeadline(string)          { r.cleared.Add(1) }

func TestSinkSeesSetAndClear(t *testing.T) {
	sink := &recordingSink{}
	s := NewScheduler(zerolog.Nop(), sink)

	s.Schedule("voting-1", 5*time.Millisecond, func() {})
	require.Eventually(t, func() bool { return sink.cleared.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), sink.set.Load())

	s.Schedule("voting-2", time.Minute, func() {})
	s.Cancel("voting-2")
	assert.Equal(t, int32(2), sink.set.Load())
	assert.Equal(t, int32(2), sink.cleared.Load())
}
