package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"coinflip-server/common/helper"
	"coinflip-server/common/logger"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/randomness"

	"go.uber.org/zap"
)

// Redis BRPOP 单次等待时长
const fulfillWait = 2 * time.Second

// StartFulfiller 消费待生成的随机数请求，写入 HMAC(seed, commitment)
func StartFulfiller(ctx context.Context, wg *sync.WaitGroup, src randomness.Source, seed []byte, idle time.Duration) {
	if idle <= 0 {
		idle = 200 * time.Millisecond
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("randomness fulfiller started")
		for {
			if ctx.Err() != nil {
				return
			}
			ok, err := fulfillOne(ctx, src, seed)
			if err != nil && ctx.Err() == nil {
				logger.Warn("fulfiller: fulfill failed", zap.Error(err))
			}
			if ok && err == nil {
				continue
			}
			// 队列为空或出错时退避
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
		}
	}()
}

// fulfillOne 处理一条待生成请求；队列为空时返回 false
func fulfillOne(ctx context.Context, src randomness.Source, seed []byte) (bool, error) {
	c, ok, err := src.NextPending(ctx, fulfillWait)
	if err != nil || !ok {
		return false, err
	}
	err = src.Fulfill(ctx, c, randomness.Derive(seed, c))
	switch {
	case err == nil:
		metrics.RecordWorkerItem("fulfiller", "success")
		logger.Debug("randomness fulfilled", zap.String("commitment", helper.FormatCommitment(c)))
	case errors.Is(err, randomness.ErrAlreadyFulfilled):
		metrics.RecordWorkerItem("fulfiller", "skip")
		err = nil
	default:
		metrics.RecordWorkerItem("fulfiller", "fail")
	}
	return true, err
}
