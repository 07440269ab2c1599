package main

import (
	"context"
	"log"
	"log/slog"

	"fyne.io/fyne/v2/app"
	"github.com/jonboulle/clockwork"

	"PomodoroTimer/internal/config"
	"PomodoroTimer/internal/countdown"
	"PomodoroTimer/internal/logging"
	"PomodoroTimer/internal/metrics"
	"PomodoroTimer/internal/storage"
	"PomodoroTimer/internal/ui"
)

func setupStorage(cfg *config.Config, clock clockwork.Clock) *storage.Database {
	if !cfg.Database.Enabled {
		slog.Info("Session history disabled")
		return nil
	}

	db, err := storage.NewDatabase(cfg.Database.Path, clock)
	if err != nil {
		// 没有历史记录也能计时
		slog.Error("Failed to open session history, continuing without it", "path", cfg.Database.Path, "error", err)
		return nil
	}
	return db
}

func main() {
	// 初始化配置管理器
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatal(err)
	}
	cfg := configManager.GetConfig()

	logging.InitLogger(cfg.Log.Level, cfg.Log.Format)
	slog.Info("Application starting", "version", cfg.App.Version, "config", configManager.Path())

	clock := clockwork.NewRealClock()

	db := setupStorage(cfg, clock)
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close session history", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				slog.Error("Metrics endpoint stopped", "error", err)
			}
		}()
	}

	myApp := app.New()
	mainWindow := ui.NewMainWindow(myApp, cfg, db, clock, countdown.NewClockScheduler(clock))
	mainWindow.Show()

	slog.Info("Application stopped")
}
