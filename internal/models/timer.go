package models

import "fmt"

// TimerPhase 表示倒计时当前所处的阶段
type TimerPhase int

const (
	PhaseOff TimerPhase = iota
	PhaseQueued
	PhaseRunning
	PhaseCompleted
)

func (p TimerPhase) String() string {
	switch p {
	case PhaseOff:
		return "off"
	case PhaseQueued:
		return "queued"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// SessionConfig 是当前选中的预设
type SessionConfig struct {
	Name         string
	TotalSeconds int
}

const (
	PresetPomodoro   = "Pomodoro"
	PresetShortBreak = "Short Break"
	PresetLongBreak  = "Long Break"
)

// Presets 是固定的预设目录，按按钮顺序排列
var Presets = []SessionConfig{
	{Name: PresetPomodoro, TotalSeconds: 25 * 60},
	{Name: PresetShortBreak, TotalSeconds: 5 * 60},
	{Name: PresetLongBreak, TotalSeconds: 15 * 60},
}

// LookupPreset 按名称查找预设
func LookupPreset(name string) (SessionConfig, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return SessionConfig{}, false
}

// DefaultPreset 返回启动时使用的预设
func DefaultPreset() SessionConfig {
	return Presets[0]
}
