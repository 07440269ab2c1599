package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger 按级别和格式设置全局 slog 日志
func InitLogger(level, format string) {
	slog.SetDefault(NewLogger(os.Stderr, level, format))
}

// NewLogger 创建写入 w 的日志。format 为 "json" 时输出 JSON，否则输出文本
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel 解析日志级别，无法识别时默认 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
