package countdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PomodoroTimer/internal/metrics"
	"PomodoroTimer/internal/models"
)

// manualScheduler hands out handles whose callbacks only run when the test fires them.
type manualScheduler struct {
	mu        sync.Mutex
	handles   []*Handle
	callbacks map[*Handle]func()
	intervals []time.Duration
	released  int
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{callbacks: make(map[*Handle]func())}
}

func (s *manualScheduler) Acquire(interval time.Duration, fn func()) *Handle {
	h := NewHandle(nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles = append(s.handles, h)
	s.callbacks[h] = fn
	s.intervals = append(s.intervals, interval)
	return h
}

func (s *manualScheduler) Release(h *Handle) {
	if h.Release() {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}
}

func (s *manualScheduler) fire(h *Handle) {
	s.mu.Lock()
	fn := s.callbacks[h]
	s.mu.Unlock()
	fn()
}

func (s *manualScheduler) latest() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[len(s.handles)-1]
}

func (s *manualScheduler) counts() (acquired, released int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles), s.released
}

type mockRecorder struct {
	mu      sync.Mutex
	records []models.SessionRecord
	err     error
}

func (m *mockRecorder) RecordSession(_ context.Context, rec models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockRecorder) getRecords() []models.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.SessionRecord, len(m.records))
	copy(result, m.records)
	return result
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *manualScheduler, *mockRecorder) {
	t.Helper()
	sched := newManualScheduler()
	rec := &mockRecorder{}
	opts = append([]Option{WithRecorder(rec), WithClock(clockwork.NewFakeClock())}, opts...)
	c := NewController(models.DefaultPreset(), sched, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, sched, rec
}

func TestController_ShortBreakEndToEnd(t *testing.T) {
	c, sched, rec := newTestController(t)

	var phases []models.TimerPhase
	var remaining []int
	c.Subscribe(func(s State) {
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
		if s.Phase == models.PhaseRunning {
			remaining = append(remaining, s.Remaining)
		}
	})

	require.NoError(t, c.Dispatch(SelectPreset{Name: models.PresetShortBreak, Seconds: 300}))
	require.NoError(t, c.Dispatch(TogglePlayPause{}))

	assert.Equal(t, []models.TimerPhase{models.PhaseOff, models.PhaseQueued, models.PhaseRunning}, phases)
	assert.Equal(t, 1, c.Live())
	assert.Equal(t, []time.Duration{TickInterval}, sched.intervals)

	h := sched.latest()
	for i := 0; i < 300; i++ {
		sched.fire(h)
	}
	assert.Equal(t, models.PhaseRunning, c.State().Phase)
	assert.Equal(t, 0, c.State().Remaining)

	sched.fire(h)
	assert.Equal(t, models.PhaseCompleted, c.State().Phase)

	want := make([]int, 0, 301)
	for r := 300; r >= 0; r-- {
		want = append(want, r)
	}
	assert.Equal(t, want, remaining)
	assert.Equal(t, []models.TimerPhase{models.PhaseOff, models.PhaseQueued, models.PhaseRunning, models.PhaseCompleted}, phases)

	acquired, released := sched.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, 0, c.Live())

	records := rec.getRecords()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeCompleted, records[0].Outcome)
	assert.Equal(t, models.PresetShortBreak, records[0].Name)
	assert.Equal(t, 300, records[0].ElapsedSeconds)
	assert.NotEmpty(t, records[0].ID)
}

func TestController_TickAfterCompletedIsNoop(t *testing.T) {
	c, sched, _ := newTestController(t)

	require.NoError(t, c.Dispatch(SelectPreset{Name: "quick", Seconds: 1}))
	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	h := sched.latest()
	sched.fire(h)
	sched.fire(h)
	require.Equal(t, models.PhaseCompleted, c.State().Phase)

	require.NoError(t, c.Dispatch(Tick{}))
	sched.fire(h)
	require.NoError(t, c.Dispatch(TogglePlayPause{}))

	assert.Equal(t, models.PhaseCompleted, c.State().Phase)
	acquired, released := sched.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, released)
}

func TestController_PauseReleasesAndResumeAcquiresFresh(t *testing.T) {
	c, sched, _ := newTestController(t)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	first := sched.latest()
	sched.fire(first)
	require.Equal(t, 1499, c.State().Remaining)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	assert.Equal(t, models.PhaseOff, c.State().Phase)
	assert.True(t, first.Released())
	assert.Equal(t, 0, c.Live())

	// a tick that was already in flight when the handle was released
	sched.fire(first)
	assert.Equal(t, 1499, c.State().Remaining)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	second := sched.latest()
	assert.NotSame(t, first, second)
	assert.NotEqual(t, first.ID, second.ID)

	sched.fire(first)
	assert.Equal(t, 1499, c.State().Remaining)
	sched.fire(second)
	assert.Equal(t, 1498, c.State().Remaining)

	acquired, released := sched.counts()
	assert.Equal(t, 2, acquired)
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, c.Live())
}

func TestController_SelectPresetWhileRunningReleasesOnce(t *testing.T) {
	c, sched, rec := newTestController(t)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	h := sched.latest()
	for i := 0; i < 60; i++ {
		sched.fire(h)
	}

	require.NoError(t, c.Dispatch(SelectPreset{Name: models.PresetLongBreak, Seconds: 900}))
	require.NoError(t, c.Dispatch(SelectPreset{Name: models.PresetLongBreak, Seconds: 900}))

	s := c.State()
	assert.Equal(t, models.PhaseOff, s.Phase)
	assert.Equal(t, 900, s.Remaining)
	assert.Nil(t, s.Handle)

	_, released := sched.counts()
	assert.Equal(t, 1, released)

	records := rec.getRecords()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeInterrupted, records[0].Outcome)
	assert.Equal(t, models.PresetPomodoro, records[0].Name)
	assert.Equal(t, 60, records[0].ElapsedSeconds)
}

func TestController_SelectPresetWithoutProgressRecordsNothing(t *testing.T) {
	c, _, rec := newTestController(t)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	require.NoError(t, c.Dispatch(SelectPreset{Name: models.PresetShortBreak, Seconds: 300}))

	assert.Empty(t, rec.getRecords())
}

func TestController_QueuedToggleDoesNotAcquireTwice(t *testing.T) {
	c, sched, _ := newTestController(t)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	// repeated requests after the handle is in place
	for i := 0; i < 3; i++ {
		c.mu.Lock()
		c.acquire()
		c.mu.Unlock()
	}

	acquired, _ := sched.counts()
	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, c.Live())
}

// nilScheduler never hands out a resource.
type nilScheduler struct {
	mu       sync.Mutex
	acquired int
}

func (s *nilScheduler) Acquire(time.Duration, func()) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired++
	return nil
}

func (s *nilScheduler) Release(*Handle) {}

func TestController_MissingResourceFallsBackToOff(t *testing.T) {
	sched := &nilScheduler{}
	c := NewController(models.DefaultPreset(), sched)
	defer func() { _ = c.Close() }()

	var phases []models.TimerPhase
	c.Subscribe(func(s State) { phases = append(phases, s.Phase) })

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Dispatch(TogglePlayPause{}))
		assert.Equal(t, models.PhaseOff, c.State().Phase)
		assert.Nil(t, c.State().Handle)
	}

	assert.Equal(t, 3, sched.acquired, "each toggle may try again")
	assert.Equal(t, 0, c.Live())
	assert.Equal(t, []models.TimerPhase{
		models.PhaseQueued, models.PhaseOff,
		models.PhaseQueued, models.PhaseOff,
		models.PhaseQueued, models.PhaseOff,
	}, phases)
}

func TestController_OrphanHandleIsReleased(t *testing.T) {
	c, sched, _ := newTestController(t)

	orphan := NewHandle(nil)
	require.NoError(t, c.Dispatch(ResourceAcquired{Handle: orphan}))

	assert.True(t, orphan.Released())
	assert.Equal(t, models.PhaseOff, c.State().Phase)
	assert.Equal(t, 0, c.Live())
	_, released := sched.counts()
	assert.Equal(t, 1, released)
}

func TestController_CloseReleasesOutstandingResource(t *testing.T) {
	c, sched, rec := newTestController(t)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	h := sched.latest()
	sched.fire(h)

	require.NoError(t, c.Close())
	assert.True(t, h.Released())
	assert.Equal(t, 0, c.Live())
	assert.Equal(t, models.PhaseOff, c.State().Phase)
	assert.Nil(t, c.State().Handle)

	assert.ErrorIs(t, c.Dispatch(TogglePlayPause{}), ErrClosed)
	sched.fire(h)
	assert.Equal(t, 1499, c.State().Remaining)

	require.NoError(t, c.Close())
	_, released := sched.counts()
	assert.Equal(t, 1, released)

	records := rec.getRecords()
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeInterrupted, records[0].Outcome)
	assert.Equal(t, 1, records[0].ElapsedSeconds)
}

func TestController_ObserverSeesQueuedBeforeRunning(t *testing.T) {
	c, _, _ := newTestController(t)

	var seen []State
	c.Subscribe(func(s State) { seen = append(seen, s) })

	require.NoError(t, c.Dispatch(TogglePlayPause{}))

	require.Len(t, seen, 2)
	assert.Equal(t, models.PhaseQueued, seen[0].Phase)
	assert.Nil(t, seen[0].Handle)
	assert.Equal(t, models.PhaseRunning, seen[1].Phase)
	assert.NotNil(t, seen[1].Handle)
}

func TestController_UnchangedStateDoesNotNotify(t *testing.T) {
	c, _, _ := newTestController(t)

	calls := 0
	c.Subscribe(func(State) { calls++ })

	require.NoError(t, c.Dispatch(Tick{}))
	require.NoError(t, c.Dispatch(SelectPreset{Name: models.PresetPomodoro, Seconds: 1500}))

	assert.Equal(t, 0, calls)
}

func TestController_RecorderFailureIsCounted(t *testing.T) {
	c, sched, rec := newTestController(t)
	rec.err = errors.New("disk full")

	before := testutil.ToFloat64(metrics.SessionRecordErrors)

	require.NoError(t, c.Dispatch(SelectPreset{Name: "quick", Seconds: 0}))
	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	sched.fire(sched.latest())

	assert.Equal(t, models.PhaseCompleted, c.State().Phase)
	assert.Len(t, rec.getRecords(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SessionRecordErrors))
}

func TestController_ResourceMetrics(t *testing.T) {
	c, sched, _ := newTestController(t)

	acquiredBefore := testutil.ToFloat64(metrics.TimerResourcesAcquired)
	releasedBefore := testutil.ToFloat64(metrics.TimerResourcesReleased)
	staleBefore := testutil.ToFloat64(metrics.StaleTicksTotal)

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TimerResourcesLive))

	h := sched.latest()
	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	sched.fire(h)

	assert.Equal(t, acquiredBefore+1, testutil.ToFloat64(metrics.TimerResourcesAcquired))
	assert.Equal(t, releasedBefore+1, testutil.ToFloat64(metrics.TimerResourcesReleased))
	assert.Equal(t, staleBefore+1, testutil.ToFloat64(metrics.StaleTicksTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.TimerResourcesLive))
}

func TestController_WithClockScheduler(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewController(models.SessionConfig{Name: "tiny", TotalSeconds: 2}, NewClockScheduler(clock), WithClock(clock))
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Dispatch(TogglePlayPause{}))
	require.Equal(t, models.PhaseRunning, c.State().Phase)

	for _, want := range []int{1, 0} {
		clock.Advance(TickInterval)
		assert.Eventually(t, func() bool {
			return c.State().Remaining == want
		}, time.Second, 5*time.Millisecond)
	}

	clock.Advance(TickInterval)
	assert.Eventually(t, func() bool {
		return c.State().Phase == models.PhaseCompleted
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.Live())
}
