package countdown

import "PomodoroTimer/internal/models"

// State 是倒计时的完整状态，只能通过 Reduce 改变
type State struct {
	Phase        models.TimerPhase
	Handle       *Handle // 仅在 PhaseRunning 时非空
	TimerName    string
	TotalSeconds int
	Remaining    int
}

// NewState 以给定预设创建处于 Off 阶段的初始状态
func NewState(cfg models.SessionConfig) State {
	seconds := max(cfg.TotalSeconds, 0)
	return State{
		Phase:        models.PhaseOff,
		TimerName:    cfg.Name,
		TotalSeconds: seconds,
		Remaining:    seconds,
	}
}

type Action interface {
	isAction()
}

// SelectPreset 切换到某个预设并回到 Off
type SelectPreset struct {
	Name    string
	Seconds int
}

// TogglePlayPause 对应播放/暂停按钮
type TogglePlayPause struct{}

// ResourceAcquired 通知状态机定时资源已就绪
type ResourceAcquired struct {
	Handle *Handle
}

// Tick 表示经过一秒
type Tick struct{}

func (SelectPreset) isAction()     {}
func (TogglePlayPause) isAction()  {}
func (ResourceAcquired) isAction() {}
func (Tick) isAction()             {}

// Command 是 Reduce 返回的副作用请求，由 Controller 执行
type Command interface {
	isCommand()
}

// AcquireResource 在进入 Queued 时发出
type AcquireResource struct{}

// ReleaseResource 在离开 Running 时发出
type ReleaseResource struct {
	Handle *Handle
}

func (AcquireResource) isCommand() {}
func (ReleaseResource) isCommand() {}

// Reduce 是纯函数：给定状态和动作，返回下一个状态以及需要执行的命令。
// 无效的组合原样返回状态。
func Reduce(s State, a Action) (State, []Command) {
	switch a := a.(type) {
	case SelectPreset:
		cmds := releaseRunning(s)
		next := NewState(models.SessionConfig{Name: a.Name, TotalSeconds: a.Seconds})
		return next, cmds

	case TogglePlayPause:
		switch s.Phase {
		case models.PhaseOff:
			s.Phase = models.PhaseQueued
			return s, []Command{AcquireResource{}}
		case models.PhaseRunning:
			cmds := releaseRunning(s)
			s.Phase = models.PhaseOff
			s.Handle = nil
			return s, cmds
		}
		return s, nil

	case ResourceAcquired:
		if a.Handle == nil {
			return s, nil
		}
		if s.Phase != models.PhaseQueued {
			// 没有人会持有这个句柄，直接归还
			return s, []Command{ReleaseResource{Handle: a.Handle}}
		}
		s.Phase = models.PhaseRunning
		s.Handle = a.Handle
		return s, nil

	case Tick:
		if s.Phase != models.PhaseRunning {
			return s, nil
		}
		if s.Remaining == 0 {
			cmds := releaseRunning(s)
			s.Phase = models.PhaseCompleted
			s.Handle = nil
			return s, cmds
		}
		s.Remaining--
		return s, nil
	}
	return s, nil
}

func releaseRunning(s State) []Command {
	if s.Phase != models.PhaseRunning || s.Handle == nil {
		return nil
	}
	return []Command{ReleaseResource{Handle: s.Handle}}
}
