package ui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"github.com/jonboulle/clockwork"

	"PomodoroTimer/internal/config"
	"PomodoroTimer/internal/countdown"
	"PomodoroTimer/internal/models"
	"PomodoroTimer/internal/storage"
)

type MainWindow struct {
	window fyne.Window
	timer  *PomodoroTimer
	stats  *StatsView
	cfg    *config.Config
}

// NewMainWindow 组装计时器和统计页。db 为 nil 时不记录历史。
func NewMainWindow(app fyne.App, cfg *config.Config, db *storage.Database, clock clockwork.Clock, scheduler countdown.Scheduler) *MainWindow {
	w := &MainWindow{
		window: app.NewWindow(cfg.App.Name),
		cfg:    cfg,
	}

	var source StatsSource
	opts := []countdown.Option{countdown.WithClock(clock)}
	if db != nil {
		source = db
		opts = append(opts, countdown.WithRecorder(countdown.RecorderFunc(
			func(ctx context.Context, rec models.SessionRecord) error {
				if err := db.RecordSession(ctx, rec); err != nil {
					return err
				}
				fyne.Do(w.stats.Refresh)
				return nil
			},
		)))
	}

	w.stats = NewStatsView(source, clock)
	controller := countdown.NewController(cfg.StartPreset(), scheduler, opts...)
	w.timer = NewPomodoroTimer(controller)

	w.setup()
	return w
}

func (w *MainWindow) setup() {
	tabs := container.NewAppTabs(
		container.NewTabItem("Timer", w.timer.Container()),
		container.NewTabItem("Statistics", w.stats.Container()),
	)
	tabs.OnSelected = func(tab *container.TabItem) {
		if tab.Text == "Statistics" {
			w.stats.Refresh()
		}
	}

	w.window.SetContent(tabs)
	w.window.Resize(fyne.NewSize(float32(w.cfg.App.WindowWidth), float32(w.cfg.App.WindowHeight)))
	// 关闭窗口时必须释放计时资源
	w.window.SetOnClosed(w.timer.Close)
}

func (w *MainWindow) Window() fyne.Window {
	return w.window
}

func (w *MainWindow) Show() {
	w.window.ShowAndRun()
}
