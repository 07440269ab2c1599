package models

import "time"

type SessionOutcome string

const (
	OutcomeCompleted   SessionOutcome = "completed"
	OutcomeInterrupted SessionOutcome = "interrupted"
)

// SessionRecord 记录一次已结束的倒计时
type SessionRecord struct {
	ID             string
	Name           string
	TotalSeconds   int
	ElapsedSeconds int // 实际走过的秒数
	Outcome        SessionOutcome
	StartedAt      time.Time
	EndedAt        time.Time
}

type SessionStats struct {
	TotalSessions       int
	CompletedSessions   int
	InterruptedSessions int
	FocusSeconds        int64 // 以秒为单位
	TodaySessions       int
	TodayFocusSeconds   int64
}

// CompletionRate 返回完成比例（百分比）
func (s SessionStats) CompletionRate() float64 {
	if s.TotalSessions == 0 {
		return 0
	}
	return float64(s.CompletedSessions) / float64(s.TotalSessions) * 100
}
