package database

import (
	"context"
	"fmt"
	"time"
)

// 合成状态。
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Composition 一次合成运行的摘要，不含文本和音频内容。
type Composition struct {
	ID           string
	Voice        string
	Tone         string
	Segments     int
	Materialized int
	Dropped      int
	Fallback     bool
	Status       string
	Error        string
	Duration     time.Duration
	CreatedAt    time.Time
}

// CompositionLog 合成记录的读写。
type CompositionLog struct {
	db *DB
}

// NewCompositionLog 创建合成记录存储，调用前需要先 Migrate。
func NewCompositionLog(db *DB) *CompositionLog {
	return &CompositionLog{db: db}
}

// Record 写入一条记录，同 ID 的记录会被覆盖。
func (l *CompositionLog) Record(ctx context.Context, c Composition) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO compositions
			(id, voice, tone, segments, materialized, dropped, fallback, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Voice, c.Tone, c.Segments, c.Materialized, c.Dropped, c.Fallback,
		c.Status, c.Error, c.Duration.Milliseconds(), c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("写入合成记录失败: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近 limit 条记录。
func (l *CompositionLog) Recent(ctx context.Context, limit int) ([]Composition, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, voice, tone, segments, materialized, dropped, fallback, status, error, duration_ms, created_at
		FROM compositions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询合成记录失败: %w", err)
	}
	defer rows.Close()

	var list []Composition
	for rows.Next() {
		var c Composition
		var ms int64
		if err := rows.Scan(&c.ID, &c.Voice, &c.Tone, &c.Segments, &c.Materialized, &c.Dropped,
			&c.Fallback, &c.Status, &c.Error, &ms, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("读取合成记录失败: %w", err)
		}
		c.Duration = time.Duration(ms) * time.Millisecond
		list = append(list, c)
	}
	return list, rows.Err()
}
