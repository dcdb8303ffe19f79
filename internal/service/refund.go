package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/game"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"
	"coinflip-server/internal/state"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// RefundWager 超过 settle_timeout 仍未完结的注单退还本金
// 调用方须为玩家本人或 operator
func (e *Engine) RefundWager(ctx context.Context, roomID, caller string) (out *model.Wager, err error) {
	start := time.Now()
	choice := ""
	defer func() { metrics.RecordWager("refund", resultOf(err), choice, start) }()

	lock, err := lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlockRoom(ctx, lock, roomID)

	rules := e.rules()
	now := e.now().UnixMilli()
	var reserveAfter uint64

	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := activeReserve(ctx, tx)
		if err != nil {
			return err
		}
		w, err := lockWager(ctx, tx, roomID)
		if err != nil {
			return err
		}
		choice = game.Choice(w.Choice).String()
		if caller != w.Player && caller != r.Operator {
			return ErrNotPlayer
		}
		next, err := state.NextState(w.Status, state.EvtRefund)
		if err != nil {
			return fmt.Errorf("%w: wager is %s", ErrInvalidState, state.Name(w.Status))
		}
		if now-w.LastPlayTime < rules.SettleTimeout.Milliseconds() {
			return ErrRefundNotDue
		}

		ref := transferRef{roomID: w.RoomID, roundNo: w.RoundNo, remark: "wager refund"}
		if err := reserveToAccount(ctx, tx, r, w.Player, w.Stake, model.BizRefund, ref); err != nil {
			return err
		}
		if err := model.FinishWager(ctx, tx, w.RoomID, int8(game.OutcomeNone), w.Stake, true, w.Status, next); err != nil {
			if errors.Is(err, model.ErrStaleWrite) {
				return ErrInvalidState
			}
			return err
		}
		w.Status, w.Outcome, w.Payout, w.Refunded = next, int8(game.OutcomeNone), w.Stake, true

		payload := wagerPayload("wager_refunded", w)
		payload["by"] = caller
		if err := model.CreateOutbox(ctx, tx, "wager_refunded", wagerBizKey(w), payload); err != nil {
			return err
		}
		out = w
		reserveAfter = r.Balance
		return nil
	})
	if err != nil {
		logger.WarnCtx(ctx, "refund wager failed", zap.String("room_id", roomID), zap.String("caller", caller), zap.Error(err))
		return nil, err
	}
	cacheWager(ctx, out)
	metrics.SetReserveBalance(reserveAfter)
	logger.InfoCtx(ctx, "wager refunded",
		zap.String("room_id", out.RoomID), zap.Uint32("round_no", out.RoundNo),
		zap.String("player", out.Player), zap.Uint64("stake", out.Stake), zap.String("by", caller))
	return out, nil
}

// PendingSettlements 处于 processing 的注单（供自动开奖任务轮询）
func (e *Engine) PendingSettlements(ctx context.Context, limit uint) ([]model.Wager, error) {
	return model.ListWagersByStatus(ctx, e.db, state.StatusProcessing, e.now().UnixMilli(), limit)
}

// StaleWagers 超过 settle_timeout 仍未完结的注单（供自动退款任务轮询）
func (e *Engine) StaleWagers(ctx context.Context, limit uint) ([]model.Wager, error) {
	cutoff := e.now().Add(-e.rules().SettleTimeout).UnixMilli()
	var out []model.Wager
	for _, st := range []int8{state.StatusWaiting, state.StatusProcessing} {
		list, err := model.ListWagersByStatus(ctx, e.db, st, cutoff, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}
