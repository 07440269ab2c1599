package countdown

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"PomodoroTimer/internal/metrics"
	"PomodoroTimer/internal/models"
)

// TickInterval 是重复回调的间隔
const TickInterval = time.Second

var ErrClosed = errors.New("countdown: controller closed")

// Observer 在每次状态变化后收到快照。回调在 Controller 的锁内执行，
// 不能同步地再调用 Controller。
type Observer func(State)

// SessionRecorder 接收已结束的会话
type SessionRecorder interface {
	RecordSession(ctx context.Context, rec models.SessionRecord) error
}

// RecorderFunc 把普通函数适配为 SessionRecorder
type RecorderFunc func(ctx context.Context, rec models.SessionRecord) error

func (f RecorderFunc) RecordSession(ctx context.Context, rec models.SessionRecord) error {
	return f(ctx, rec)
}

type Option func(*Controller)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithRecorder(r SessionRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// session 跟踪当前预设从第一次开始到完成或被放弃的过程
type session struct {
	active    bool
	startedAt time.Time
}

// Controller 持有唯一的定时资源，把用户操作和定时回调串行地交给 Reduce。
type Controller struct {
	mu        sync.Mutex
	state     State
	scheduler Scheduler
	clock     clockwork.Clock
	interval  time.Duration
	recorder  SessionRecorder
	observers []Observer

	armed   bool    // 当前 Queued 是否还允许申请资源
	owned   *Handle // 由本 Controller 申请且尚未释放的句柄
	closed  bool
	session session
	pending []models.SessionRecord
}

func NewController(initial models.SessionConfig, scheduler Scheduler, opts ...Option) *Controller {
	c := &Controller{
		state:     NewState(initial),
		scheduler: scheduler,
		clock:     clockwork.NewRealClock(),
		interval:  TickInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回当前状态的副本
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Live 返回当前持有的资源数量，只可能是 0 或 1
func (c *Controller) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owned != nil {
		return 1
	}
	return 0
}

func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// Dispatch 把动作交给状态机并执行产生的命令
func (c *Controller) Dispatch(a Action) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.dispatchLocked(a)
	records := c.takePending()
	c.mu.Unlock()

	c.flush(records)
	return nil
}

// Close 释放仍在运行的资源，之后的 Dispatch 返回 ErrClosed
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.release(c.owned)
	c.endSession(c.state, models.OutcomeInterrupted)
	if c.state.Phase == models.PhaseRunning || c.state.Phase == models.PhaseQueued {
		c.state.Phase = models.PhaseOff
	}
	c.state.Handle = nil
	c.closed = true
	records := c.takePending()
	c.mu.Unlock()

	c.flush(records)
	slog.Debug("Countdown controller closed")
	return nil
}

// hp 指向的句柄在锁内赋值，所以只能在锁内读取
func (c *Controller) onTick(hp **Handle) {
	c.mu.Lock()
	h := *hp
	if c.closed || h == nil || h.Released() {
		c.mu.Unlock()
		metrics.StaleTicksTotal.Inc()
		slog.Debug("Dropped stale tick", "handle", h)
		return
	}
	metrics.TicksTotal.Inc()
	c.dispatchLocked(Tick{})
	records := c.takePending()
	c.mu.Unlock()

	c.flush(records)
}

func (c *Controller) dispatchLocked(a Action) {
	prev := c.state
	next, cmds := Reduce(prev, a)
	c.state = next

	if prev.Phase != models.PhaseQueued && next.Phase == models.PhaseQueued {
		c.armed = true
	}
	c.trackSession(prev, next, a)

	// 先释放，再通知，最后申请：观察者按 Queued -> Running 的顺序看到变化
	var acquire bool
	for _, cmd := range cmds {
		switch cmd := cmd.(type) {
		case ReleaseResource:
			c.release(cmd.Handle)
		case AcquireResource:
			acquire = true
		}
	}

	if next != prev {
		if next.Phase != prev.Phase {
			slog.Debug("Countdown phase changed", "from", prev.Phase, "to", next.Phase, "timer", next.TimerName, "remaining", next.Remaining)
		}
		for _, o := range c.observers {
			o(next)
		}
	}

	if acquire {
		c.acquire()
	}
}

func (c *Controller) acquire() {
	if !c.armed || c.state.Phase != models.PhaseQueued {
		slog.Debug("Skipped duplicate resource acquisition", "phase", c.state.Phase)
		return
	}
	c.armed = false

	// Scheduler 不得在 Acquire 内同步调用回调
	var h *Handle
	h = c.scheduler.Acquire(c.interval, func() { c.onTick(&h) })
	if h == nil {
		// 没有资源就不能停在 Queued，回到 Off 让用户重试
		slog.Warn("Scheduler returned no timer resource", "timer", c.state.TimerName)
		c.state.Phase = models.PhaseOff
		for _, o := range c.observers {
			o(c.state)
		}
		return
	}
	c.owned = h
	metrics.TimerResourcesAcquired.Inc()
	metrics.TimerResourcesLive.Set(1)
	slog.Debug("Timer resource acquired", "handle", h, "interval", c.interval)

	c.dispatchLocked(ResourceAcquired{Handle: h})
}

func (c *Controller) release(h *Handle) {
	if h == nil || h.Released() {
		return
	}
	c.scheduler.Release(h)
	if h != c.owned {
		slog.Warn("Released orphaned timer resource", "handle", h)
		return
	}
	c.owned = nil
	metrics.TimerResourcesReleased.Inc()
	metrics.TimerResourcesLive.Set(0)
	slog.Debug("Timer resource released", "handle", h)
}

func (c *Controller) trackSession(prev, next State, a Action) {
	if _, ok := a.(SelectPreset); ok {
		c.endSession(prev, models.OutcomeInterrupted)
		slog.Info("Preset selected", "timer", next.TimerName, "seconds", next.TotalSeconds)
		return
	}

	if next.Phase == models.PhaseQueued && !c.session.active {
		c.session = session{active: true, startedAt: c.clock.Now()}
	}
	if prev.Phase == models.PhaseRunning && next.Phase == models.PhaseCompleted {
		c.endSession(next, models.OutcomeCompleted)
	}
}

// endSession 在会话有进展时生成一条记录
func (c *Controller) endSession(s State, outcome models.SessionOutcome) {
	if !c.session.active {
		return
	}
	started := c.session.startedAt
	c.session = session{}

	elapsed := s.TotalSeconds - s.Remaining
	if outcome == models.OutcomeInterrupted && elapsed <= 0 {
		return
	}

	c.pending = append(c.pending, models.SessionRecord{
		ID:             uuid.NewString(),
		Name:           s.TimerName,
		TotalSeconds:   s.TotalSeconds,
		ElapsedSeconds: elapsed,
		Outcome:        outcome,
		StartedAt:      started,
		EndedAt:        c.clock.Now(),
	})
}

func (c *Controller) takePending() []models.SessionRecord {
	records := c.pending
	c.pending = nil
	return records
}

// flush 在锁外写入会话记录
func (c *Controller) flush(records []models.SessionRecord) {
	for _, rec := range records {
		metrics.SessionsTotal.WithLabelValues(string(rec.Outcome)).Inc()
		slog.Info("Session finished", "timer", rec.Name, "outcome", rec.Outcome, "elapsed", rec.ElapsedSeconds)

		if c.recorder == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.recorder.RecordSession(ctx, rec); err != nil {
			metrics.SessionRecordErrors.Inc()
			slog.Warn("Failed to record session", "timer", rec.Name, "error", err)
		}
		cancel()
	}
}
