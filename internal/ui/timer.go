package ui

import (
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"PomodoroTimer/internal/countdown"
	"PomodoroTimer/internal/models"
)

// PomodoroTimer 把 countdown.Controller 渲染为 fyne 组件
type PomodoroTimer struct {
	controller *countdown.Controller

	// UI 组件
	container     *fyne.Container
	nameLabel     *widget.Label
	timeLabel     *canvas.Text
	statusLabel   *canvas.Text
	playButton    *widget.Button
	presetButtons []*widget.Button
}

var (
	timeColor   = color.NRGBA{R: 25, G: 25, B: 25, A: 255}
	statusColor = color.NRGBA{R: 80, G: 80, B: 80, A: 255}
)

// NewPomodoroTimer 创建组件并订阅状态变化
func NewPomodoroTimer(controller *countdown.Controller) *PomodoroTimer {
	p := &PomodoroTimer{controller: controller}

	p.nameLabel = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	p.timeLabel = canvas.NewText("", timeColor)
	p.timeLabel.TextStyle = fyne.TextStyle{Monospace: true}
	p.timeLabel.TextSize = 48
	p.timeLabel.Alignment = fyne.TextAlignCenter

	p.statusLabel = canvas.NewText("", statusColor)
	p.statusLabel.TextSize = 14
	p.statusLabel.Alignment = fyne.TextAlignCenter

	p.playButton = widget.NewButtonWithIcon("Play/Pause", theme.MediaPlayIcon(), func() {
		p.dispatch(countdown.TogglePlayPause{})
	})
	p.playButton.Importance = widget.HighImportance

	// 预设按钮
	sidebarButtons := container.NewVBox()
	for _, preset := range models.Presets {
		preset := preset
		btn := widget.NewButton(preset.Name, func() {
			p.dispatch(countdown.SelectPreset{Name: preset.Name, Seconds: preset.TotalSeconds})
		})
		p.presetButtons = append(p.presetButtons, btn)
		sidebarButtons.Add(btn)
	}

	sidebar := container.NewVBox(
		widget.NewLabelWithStyle("Set Timer", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		sidebarButtons,
	)

	body := container.NewVBox(
		p.nameLabel,
		container.NewPadded(p.timeLabel),
		p.statusLabel,
		p.playButton,
	)

	p.container = container.NewBorder(nil, nil, sidebar, nil, container.NewCenter(body))

	p.render(controller.State())
	controller.Subscribe(func(s countdown.State) {
		// 回调可能来自定时 goroutine
		fyne.Do(func() { p.render(s) })
	})

	return p
}

func (p *PomodoroTimer) dispatch(a countdown.Action) {
	if err := p.controller.Dispatch(a); err != nil {
		slog.Warn("Dispatch rejected", "action", a, "error", err)
	}
}

// render 只依赖传入的快照
func (p *PomodoroTimer) render(s countdown.State) {
	p.nameLabel.SetText(s.TimerName)

	p.timeLabel.Text = countdown.FormatSeconds(s.Remaining)
	p.timeLabel.Refresh()

	p.statusLabel.Text = statusText(s.Phase)
	p.statusLabel.Refresh()

	if s.Phase == models.PhaseRunning {
		p.playButton.SetIcon(theme.MediaPauseIcon())
	} else {
		p.playButton.SetIcon(theme.MediaPlayIcon())
	}
}

func statusText(phase models.TimerPhase) string {
	switch phase {
	case models.PhaseQueued:
		return "Starting"
	case models.PhaseRunning:
		return "Running"
	case models.PhaseCompleted:
		return "Done"
	default:
		return "Ready"
	}
}

func (p *PomodoroTimer) Container() *fyne.Container {
	return p.container
}

// Close 释放计时资源，窗口关闭时调用
func (p *PomodoroTimer) Close() {
	if err := p.controller.Close(); err != nil {
		slog.Warn("Failed to close countdown", "error", err)
	}
}
