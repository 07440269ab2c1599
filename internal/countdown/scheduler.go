package countdown

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Handle 代表一个存活的重复回调订阅。只有当前 Running 状态持有它。
type Handle struct {
	ID uuid.UUID

	once     sync.Once
	released atomic.Bool
	stop     func()
}

// NewHandle 创建句柄，stop 在第一次 Release 时被调用
func NewHandle(stop func()) *Handle {
	return &Handle{ID: uuid.New(), stop: stop}
}

// Release 停止底层回调，只有第一次调用返回 true
func (h *Handle) Release() bool {
	first := false
	h.once.Do(func() {
		h.released.Store(true)
		if h.stop != nil {
			h.stop()
		}
		first = true
	})
	return first
}

// Released 报告句柄是否已经失效
func (h *Handle) Released() bool {
	return h.released.Load()
}

func (h *Handle) String() string {
	if h == nil {
		return "<nil>"
	}
	return h.ID.String()
}

// Scheduler 是宿主提供的定时回调设施
type Scheduler interface {
	Acquire(interval time.Duration, fn func()) *Handle
	Release(h *Handle)
}

// ClockScheduler 基于 clockwork 的 ticker 实现 Scheduler
type ClockScheduler struct {
	clock clockwork.Clock
}

func NewClockScheduler(clock clockwork.Clock) *ClockScheduler {
	return &ClockScheduler{clock: clock}
}

func (s *ClockScheduler) Acquire(interval time.Duration, fn func()) *Handle {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})
	h := NewHandle(func() {
		ticker.Stop()
		close(done)
	})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				if h.Released() {
					return
				}
				fn()
			}
		}
	}()

	return h
}

func (s *ClockScheduler) Release(h *Handle) {
	if h == nil {
		return
	}
	h.Release()
}
