package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"
	"coinflip-server/internal/service"

	"go.uber.org/zap"
)

const scanBatch = 50

// Settler 自动开奖依赖
type Settler interface {
	PendingSettlements(ctx context.Context, limit uint) ([]model.Wager, error)
	ResolveOutcome(ctx context.Context, roomID string) (*model.Wager, error)
}

// Refunder 自动退款依赖
type Refunder interface {
	GetReserve(ctx context.Context) (*model.HouseReserve, error)
	StaleWagers(ctx context.Context, limit uint) ([]model.Wager, error)
	RefundWager(ctx context.Context, roomID, caller string) (*model.Wager, error)
}

// StartAutoSettler 轮询 processing 注单并尝试开奖，随机数未就绪的跳过
func StartAutoSettler(ctx context.Context, wg *sync.WaitGroup, s Settler, interval time.Duration) {
	runTicker(ctx, wg, "auto settler", interval, func(ctx context.Context) { settlePending(ctx, s) })
}

// StartAutoRefunder 以 operator 身份退还超时注单
func StartAutoRefunder(ctx context.Context, wg *sync.WaitGroup, r Refunder, interval time.Duration) {
	runTicker(ctx, wg, "auto refunder", interval, func(ctx context.Context) { refundStale(ctx, r) })
}

func runTicker(ctx context.Context, wg *sync.WaitGroup, name string, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		interval = time.Second
	}
	wg.Add(1)
	go func() {
		ticker := time.NewTicker(interval)
		defer wg.Done()
		defer ticker.Stop()
		logger.Info(name+" started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(logger.WithTraceID(ctx, ""))
			}
		}
	}()
}

// settlePending 返回本轮完结的注单数
func settlePending(ctx context.Context, s Settler) int {
	list, err := s.PendingSettlements(ctx, scanBatch)
	if err != nil {
		logger.WarnCtx(ctx, "auto settle: list failed", zap.Error(err))
		return 0
	}
	done := 0
	for _, w := range list {
		_, err := s.ResolveOutcome(ctx, w.RoomID)
		switch {
		case err == nil:
			done++
			metrics.RecordWorkerItem("auto_settle", "success")
		case errors.Is(err, service.ErrStillProcessing),
			errors.Is(err, service.ErrDuplicateInFlight),
			errors.Is(err, service.ErrProgramPaused):
			metrics.RecordWorkerItem("auto_settle", "skip")
		default:
			metrics.RecordWorkerItem("auto_settle", "fail")
			logger.ErrorCtx(ctx, "auto settle failed", zap.String("room_id", w.RoomID), zap.Error(err))
		}
	}
	return done
}

func refundStale(ctx context.Context, r Refunder) int {
	list, err := r.StaleWagers(ctx, scanBatch)
	if err != nil {
		logger.WarnCtx(ctx, "auto refund: list failed", zap.Error(err))
		return 0
	}
	if len(list) == 0 {
		return 0
	}
	reserve, err := r.GetReserve(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "auto refund: reserve unavailable", zap.Error(err))
		return 0
	}
	done := 0
	for _, w := range list {
		if _, err := r.RefundWager(ctx, w.RoomID, reserve.Operator); err != nil {
			metrics.RecordWorkerItem("auto_refund", "fail")
			logger.WarnCtx(ctx, "auto refund failed", zap.String("room_id", w.RoomID), zap.Error(err))
			continue
		}
		done++
		metrics.RecordWorkerItem("auto_refund", "success")
	}
	return done
}
