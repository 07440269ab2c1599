package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 计时资源的生命周期
var (
	// TimerResourcesAcquired 已申请的计时句柄数
	TimerResourcesAcquired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pomodoro_timer_resources_acquired_total",
			Help: "Total repeating-callback handles acquired",
		},
	)

	// TimerResourcesReleased 已归还的计时句柄数
	TimerResourcesReleased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pomodoro_timer_resources_released_total",
			Help: "Total repeating-callback handles released",
		},
	)

	// TimerResourcesLive 当前持有的句柄数，只会是 0 或 1
	TimerResourcesLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pomodoro_timer_resources_live",
			Help: "Repeating-callback handles currently held",
		},
	)

	// TicksTotal 送入状态机的 tick 数
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pomodoro_ticks_total",
			Help: "Total ticks dispatched to the countdown",
		},
	)

	// StaleTicksTotal 句柄已释放而被丢弃的 tick 数
	StaleTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pomodoro_stale_ticks_total",
			Help: "Total ticks dropped after their handle was released",
		},
	)
)

// 会话结果
var (
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pomodoro_sessions_total",
			Help: "Finished countdown sessions by outcome",
		},
		[]string{"outcome"},
	)

	SessionRecordErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pomodoro_session_record_errors_total",
			Help: "Total failures writing session history",
		},
	)
)

// Serve 在 addr 上暴露默认 registry，直到 ctx 取消
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
