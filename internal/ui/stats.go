package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/jonboulle/clockwork"

	"PomodoroTimer/internal/models"
	"PomodoroTimer/internal/storage"
)

const (
	RangeToday     = "Today"
	RangeThisWeek  = "This Week"
	RangeThisMonth = "This Month"
	RangeAllTime   = "All Time"
)

// StatsSource 提供会话统计，storage.Database 实现了它
type StatsSource interface {
	GetSessionStats(ctx context.Context, startDate, endDate time.Time) (*models.SessionStats, error)
}

type StatsView struct {
	container    *fyne.Container
	source       StatsSource
	clock        clockwork.Clock
	dateRange    *widget.Select
	sessionStats *widget.Label
	refreshBtn   *widget.Button
}

// NewStatsView 创建统计页，source 为 nil 时显示历史记录已关闭
func NewStatsView(source StatsSource, clock clockwork.Clock) *StatsView {
	sv := &StatsView{
		source:       source,
		clock:        clock,
		sessionStats: widget.NewLabel(""),
	}
	sv.setup()
	return sv
}

func (sv *StatsView) setup() {
	title := widget.NewLabelWithStyle("Statistics", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	sv.refreshBtn = widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), sv.Refresh)

	sv.dateRange = widget.NewSelect(
		[]string{RangeToday, RangeThisWeek, RangeThisMonth, RangeAllTime},
		func(selected string) {
			sv.updateStats(selected)
		},
	)

	toolbar := container.NewHBox(
		widget.NewLabel("Time Range:"),
		sv.dateRange,
		sv.refreshBtn,
	)

	sv.container = container.NewVBox(
		title,
		toolbar,
		widget.NewLabelWithStyle("Session Statistics", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		sv.sessionStats,
	)

	// 设置默认选中值并更新统计
	sv.dateRange.SetSelected(RangeToday)
}

// Refresh 重新查询当前选中的时间范围
func (sv *StatsView) Refresh() {
	if selected := sv.dateRange.Selected; selected != "" {
		sv.updateStats(selected)
	}
}

// rangeBounds 根据选择的时间范围计算起止时间
func rangeBounds(timeRange string, now time.Time) (time.Time, time.Time) {
	today := storage.StartOfDay(now)
	switch timeRange {
	case RangeThisWeek:
		return today.AddDate(0, 0, -int(now.Weekday())), now
	case RangeThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), now
	case RangeAllTime:
		return time.Time{}, now
	default:
		return today, now
	}
}

func (sv *StatsView) updateStats(timeRange string) {
	if sv.source == nil {
		sv.sessionStats.SetText("Session history is disabled")
		return
	}

	startDate, endDate := rangeBounds(timeRange, sv.clock.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := sv.source.GetSessionStats(ctx, startDate, endDate)
	if err != nil {
		slog.Warn("Failed to load session stats", "range", timeRange, "error", err)
		sv.sessionStats.SetText("Statistics unavailable")
		return
	}

	sv.sessionStats.SetText(formatStats(stats))
}

func formatStats(stats *models.SessionStats) string {
	return fmt.Sprintf(
		"Total Sessions: %d\n"+
			"Completed: %d\n"+
			"Interrupted: %d\n"+
			"Completion Rate: %.1f%%\n"+
			"Total Time: %.1f hours\n"+
			"Today's Sessions: %d\n"+
			"Today's Time: %.1f hours",
		stats.TotalSessions,
		stats.CompletedSessions,
		stats.InterruptedSessions,
		stats.CompletionRate(),
		float64(stats.FocusSeconds)/3600,
		stats.TodaySessions,
		float64(stats.TodayFocusSeconds)/3600,
	)
}

func (sv *StatsView) Container() *fyne.Container {
	return sv.container
}
