package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinflip-server/common/helper"
	"coinflip-server/common/logger"
	"coinflip-server/internal/game"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"
	"coinflip-server/internal/state"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ResolveOutcome 读取已就绪的随机数，计算结果与派彩并完结注单
// 随机数未就绪返回 ErrStillProcessing，调用方稍后重试
func (e *Engine) ResolveOutcome(ctx context.Context, roomID string) (out *model.Wager, err error) {
	start := time.Now()
	outcome := game.OutcomeNone
	defer func() {
		res := resultOf(err)
		if errors.Is(err, ErrStillProcessing) {
			res = "pending"
		}
		metrics.RecordSettle(res, outcome.String(), start)
	}()

	lock, err := lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlockRoom(ctx, lock, roomID)

	rules := e.rules()
	var bucket, reserveAfter uint64

	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := activeReserve(ctx, tx)
		if err != nil {
			return err
		}
		w, err := lockWager(ctx, tx, roomID)
		if err != nil {
			return err
		}
		next, err := state.NextState(w.Status, state.EvtResolveOutcome)
		if err != nil {
			return fmt.Errorf("%w: wager is %s", ErrInvalidState, state.Name(w.Status))
		}

		c, err := helper.ParseCommitment(w.Commitment)
		if err != nil {
			return fmt.Errorf("stored commitment for %s: %w", roomID, err)
		}
		value, err := e.oracle.CurrentValue(ctx, c)
		if err != nil {
			return err
		}
		if helper.IsZero32(value) {
			return ErrStillProcessing
		}

		bucket = game.Bucket(value)
		outcome = game.OutcomeForBucket(bucket)
		payout, err := rules.Payout(w.Stake, game.Choice(w.Choice), outcome)
		if err != nil {
			return ErrArithmeticOverflow
		}

		ref := transferRef{roomID: w.RoomID, roundNo: w.RoundNo, remark: "wager settle " + outcome.String()}
		if err := reserveToAccount(ctx, tx, r, w.Player, payout, model.BizSettle, ref); err != nil {
			return err
		}
		if err := model.FinishWager(ctx, tx, w.RoomID, int8(outcome), payout, false, state.StatusProcessing, next); err != nil {
			if errors.Is(err, model.ErrStaleWrite) {
				return ErrInvalidState
			}
			return err
		}
		w.Status, w.Outcome, w.Payout = next, int8(outcome), payout

		payload := wagerPayload("wager_settled", w)
		payload["bucket"] = bucket
		payload["reserve_balance"] = r.Balance
		if err := model.CreateOutbox(ctx, tx, "wager_settled", wagerBizKey(w), payload); err != nil {
			return err
		}
		out = w
		reserveAfter = r.Balance
		return nil
	})
	if errors.Is(err, ErrStillProcessing) {
		logger.DebugCtx(ctx, "randomness still processing", zap.String("room_id", roomID))
		return nil, err
	}
	if err != nil {
		logger.WarnCtx(ctx, "resolve outcome failed", zap.String("room_id", roomID), zap.Error(err))
		return nil, err
	}

	metrics.AddPayout(outcome.String(), out.Payout)
	metrics.SetReserveBalance(reserveAfter)
	cacheWager(ctx, out)
	logger.InfoCtx(ctx, "wager settled",
		zap.String("room_id", out.RoomID), zap.Uint32("round_no", out.RoundNo), zap.String("player", out.Player),
		zap.Uint64("bucket", bucket), zap.String("outcome", outcome.String()), zap.Uint64("payout", out.Payout))
	return out, nil
}
