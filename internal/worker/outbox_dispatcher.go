package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"coinflip-server/common/logger"
	infmq "coinflip-server/internal/infra/rocketmq"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const outboxBatch = 100

// StartOutboxDispatcher 启动 Outbox 分发器，支持通过 ctx 优雅退出
// 调用方仅在 MQ 已启用时启动；未启用时事件保持 pending
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup, db *sqlx.DB, pub infmq.Publisher, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	wg.Add(1)
	go func() {
		ticker := time.NewTicker(interval)
		defer wg.Done()
		defer ticker.Stop()
		logger.Info("outbox dispatcher started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dispatchOutbox(ctx, db, pub, outboxBatch)
			}
		}
	}()
}

// dispatchOutbox 发送一批待发送消息，返回成功条数
func dispatchOutbox(ctx context.Context, db *sqlx.DB, pub infmq.Publisher, limit int) int {
	c, cancel := context.WithTimeout(ctx, 2*time.Second)
	rows, err := model.ListOutboxPending(c, db, limit)
	cancel()
	if err != nil {
		logger.Warn("outbox: list pending failed", zap.Error(err))
		return 0
	}
	sent := 0
	for _, r := range rows {
		if err := pub.Publish(ctx, r.Topic, r.BizKey, []byte(r.Payload)); err != nil {
			metrics.RecordWorkerItem("outbox", "fail")
			if e := model.MarkOutboxFailed(ctx, db, r.ID, truncateErr(err)); e != nil {
				logger.Warn("outbox: mark failed failed", zap.Int64("id", r.ID), zap.Error(e))
			}
			continue
		}
		if err := model.MarkOutboxSent(ctx, db, r.ID); err != nil {
			logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		metrics.RecordWorkerItem("outbox", "success")
		sent++
	}
	return sent
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}
