package model

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// outbox 状态：1=待发送 2=已发送 3=失败（超过重试上限）
const (
	OutboxPending = 1
	OutboxSent    = 2
	OutboxFailed  = 3

	outboxMaxRetry = 10
)

// Outbox 对应 outbox 表（事务消息表），与业务变更同事务写入
type Outbox struct {
	ID         int64  `db:"id"`          // 自增ID
	Topic      string `db:"topic"`       // 主题
	BizKey     string `db:"biz_key"`     // 业务键（作为消息 key）
	Payload    string `db:"payload"`     // 消息体(JSON字符串)
	Status     int8   `db:"status"`      // 状态
	RetryCount int    `db:"retry_count"` // 重试次数
	LastError  string `db:"last_error"`  // 最后一次错误
	CreatedAt  int64  `db:"created_at"`  // 创建时间
	UpdatedAt  int64  `db:"updated_at"`  // 更新时间
}

// Insert 插入一条待发送记录
func (o *Outbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := nowMillis()
	_, err := exec.ExecContext(ctx,
		"INSERT INTO outbox (topic, biz_key, payload, status, retry_count, last_error, created_at, updated_at) VALUES (?, ?, ?, ?, 0, '', ?, ?)",
		o.Topic, o.BizKey, o.Payload, OutboxPending, now, now)
	return errors.Wrap(err, "insert outbox")
}

// OutboxRow 是调度器扫描用的轻量投影
type OutboxRow struct {
	ID      int64  `db:"id"`
	Topic   string `db:"topic"`
	BizKey  string `db:"biz_key"`
	Payload string `db:"payload"`
}

// ListOutboxPending 查询待发送且未超过重试上限的记录
func ListOutboxPending(ctx context.Context, exec sqlx.ExtContext, limit int) ([]OutboxRow, error) {
	var list []OutboxRow
	err := sqlx.SelectContext(ctx, exec, &list,
		"SELECT id, topic, biz_key, payload FROM outbox WHERE status = ? AND retry_count < ? ORDER BY id ASC LIMIT ?",
		OutboxPending, outboxMaxRetry, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list outbox pending")
	}
	return list, nil
}

// MarkOutboxSent 标记为已发送
func MarkOutboxSent(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	_, err := exec.ExecContext(ctx, "UPDATE outbox SET status = ?, updated_at = ? WHERE id = ?", OutboxSent, nowMillis(), id)
	return errors.Wrap(err, "mark outbox sent")
}

// MarkOutboxFailed 记录失败；达到重试上限后转为永久失败，否则保持待发送
func MarkOutboxFailed(ctx context.Context, exec sqlx.ExtContext, id int64, lastError string) error {
	_, err := exec.ExecContext(ctx,
		"UPDATE outbox SET status = CASE WHEN retry_count >= ? THEN ? ELSE ? END, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?",
		outboxMaxRetry-1, OutboxFailed, OutboxPending, lastError, nowMillis(), id)
	return errors.Wrap(err, "mark outbox failed")
}

// CreateOutbox 序列化 payload 并写入 outbox
func CreateOutbox(ctx context.Context, exec sqlx.ExtContext, topic, bizKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal outbox payload")
	}
	o := &Outbox{Topic: topic, BizKey: bizKey, Payload: string(b)}
	return o.Insert(ctx, exec)
}
