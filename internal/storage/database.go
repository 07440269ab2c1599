package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"

	"PomodoroTimer/internal/models"
)

// Database 保存已结束的倒计时记录，不保存计时器本身的状态
type Database struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewDatabase(path string, clock clockwork.Clock) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping session database: %w", err)
	}

	database := &Database{db: db, clock: clock}
	if err := database.initTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return database, nil
}

func (d *Database) initTables() error {
	// 创建会话记录表，时间以 unix 秒存储
	_, err := d.db.Exec(`
        CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            total_seconds INTEGER NOT NULL,
            elapsed_seconds INTEGER NOT NULL,
            outcome TEXT NOT NULL,
            started_at INTEGER NOT NULL,
            ended_at INTEGER NOT NULL
        )
    `)
	if err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	_, err = d.db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`)
	if err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// RecordSession 追加一条会话记录
func (d *Database) RecordSession(ctx context.Context, rec models.SessionRecord) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO sessions (id, name, total_seconds, elapsed_seconds, outcome, started_at, ended_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, rec.ID, rec.Name, rec.TotalSeconds, rec.ElapsedSeconds, string(rec.Outcome), rec.StartedAt.Unix(), rec.EndedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert session %s: %w", rec.ID, err)
	}
	return nil
}

// GetSessionStats 统计 [startDate, endDate] 内开始的会话
func (d *Database) GetSessionStats(ctx context.Context, startDate, endDate time.Time) (*models.SessionStats, error) {
	stats := &models.SessionStats{}

	err := d.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN outcome = 'completed' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN outcome = 'interrupted' THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(elapsed_seconds), 0)
        FROM sessions
        WHERE started_at BETWEEN ? AND ?
    `, startDate.Unix(), endDate.Unix()).Scan(
		&stats.TotalSessions,
		&stats.CompletedSessions,
		&stats.InterruptedSessions,
		&stats.FocusSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("query session stats: %w", err)
	}

	// 今日统计
	err = d.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            COALESCE(SUM(elapsed_seconds), 0)
        FROM sessions
        WHERE started_at >= ?
    `, StartOfDay(d.clock.Now()).Unix()).Scan(&stats.TodaySessions, &stats.TodayFocusSeconds)
	if err != nil {
		return nil, fmt.Errorf("query today stats: %w", err)
	}

	return stats, nil
}

// RecentSessions 按开始时间倒序返回最近的记录
func (d *Database) RecentSessions(ctx context.Context, limit int) ([]models.SessionRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, name, total_seconds, elapsed_seconds, outcome, started_at, ended_at
        FROM sessions
        ORDER BY started_at DESC, ended_at DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var (
			rec               models.SessionRecord
			outcome           string
			started, finished int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.TotalSeconds, &rec.ElapsedSeconds, &outcome, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Outcome = models.SessionOutcome(outcome)
		rec.StartedAt = time.Unix(started, 0)
		rec.EndedAt = time.Unix(finished, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StartOfDay 返回 t 所在本地日期的零点
func StartOfDay(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}
