package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coinflip-server/common/helper"
	"coinflip-server/common/logger"
	"coinflip-server/internal/game"
	infmysql "coinflip-server/internal/infra/mysql"
	infrds "coinflip-server/internal/infra/redis"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"
	"coinflip-server/internal/randomness"
	"coinflip-server/internal/state"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// 已完结注单快照缓存时长
const wagerCacheTTL = 2 * time.Minute

// OpenWagerInput 开局参数
type OpenWagerInput struct {
	RoomID string
	Player string
	Stake  uint64 // lamports
	Choice game.Choice
}

// OpenWager 托管本金并创建 waiting 注单
func (e *Engine) OpenWager(ctx context.Context, in OpenWagerInput) (*model.Wager, error) {
	return e.openWager(ctx, in, nil)
}

// OpenWagerAndRequest 开局与请求随机数在同一事务内完成，要么都生效要么都不生效
func (e *Engine) OpenWagerAndRequest(ctx context.Context, in OpenWagerInput, commitment [32]byte) (*model.Wager, error) {
	return e.openWager(ctx, in, &commitment)
}

func (e *Engine) openWager(ctx context.Context, in OpenWagerInput, commitment *[32]byte) (out *model.Wager, err error) {
	start := time.Now()
	op := "open"
	if commitment != nil {
		op = "open_and_request"
	}
	defer func() { metrics.RecordWager(op, resultOf(err), in.Choice.String(), start) }()

	in.RoomID = strings.TrimSpace(in.RoomID)
	lock, err := lockRoom(ctx, in.RoomID)
	if err != nil {
		return nil, err
	}
	defer unlockRoom(ctx, lock, in.RoomID)

	rules := e.rules()
	now := e.now().UnixMilli()
	var reserveAfter uint64

	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := activeReserve(ctx, tx)
		if err != nil {
			return err
		}
		if err := validateOpen(rules, in, commitment); err != nil {
			return err
		}

		prev, err := model.GetWagerForUpdate(ctx, tx, in.RoomID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			prev = nil
		case err != nil:
			return err
		}
		if prev != nil {
			if state.Live(prev.Status) {
				return ErrWagerInProgress
			}
			if now-prev.LastPlayTime < rules.Cooldown.Milliseconds() {
				return ErrRateLimited
			}
		}

		required, err := rules.RequiredReserve(in.Stake, in.Choice)
		if err != nil {
			return ErrArithmeticOverflow
		}
		if r.Balance < required {
			return ErrInsufficientFunds
		}

		w := &model.Wager{
			RoomID:       in.RoomID,
			RoundNo:      1,
			Player:       in.Player,
			Stake:        in.Stake,
			Choice:       int8(in.Choice),
			Status:       state.StatusWaiting,
			LastPlayTime: now,
		}
		if prev != nil {
			w.RoundNo = prev.RoundNo + 1
		}

		ref := transferRef{roomID: w.RoomID, roundNo: w.RoundNo, remark: "wager stake"}
		if err := accountToReserve(ctx, tx, r, in.Player, in.Stake, model.BizBet, ref); err != nil {
			return err
		}
		if prev == nil {
			if err := w.Insert(ctx, tx); err != nil {
				if infmysql.IsDuplicateKey(err) {
					return ErrWagerInProgress
				}
				return err
			}
		} else if err := w.Reopen(ctx, tx, state.StatusFinished); err != nil {
			if errors.Is(err, model.ErrStaleWrite) {
				return ErrWagerInProgress
			}
			return err
		}
		if err := model.CreateOutbox(ctx, tx, "wager_opened", wagerBizKey(w), wagerPayload("wager_opened", w)); err != nil {
			return err
		}

		if commitment != nil {
			if err := e.bindCommitment(ctx, tx, w, *commitment); err != nil {
				return err
			}
		}
		out = w
		reserveAfter = r.Balance
		return nil
	})
	if err != nil {
		logger.WarnCtx(ctx, "open wager failed",
			zap.String("room_id", in.RoomID), zap.String("player", in.Player),
			zap.Uint64("stake", in.Stake), zap.String("choice", in.Choice.String()), zap.Error(err))
		return nil, err
	}

	dropWagerCache(ctx, out.RoomID)
	metrics.SetReserveBalance(reserveAfter)
	logger.InfoCtx(ctx, "wager opened",
		zap.String("room_id", out.RoomID), zap.Uint32("round_no", out.RoundNo), zap.String("player", out.Player),
		zap.Uint64("stake", out.Stake), zap.String("choice", in.Choice.String()), zap.String("status", state.Name(out.Status)))
	return out, nil
}

// validateOpen 纯入参校验，不访问存储
func validateOpen(rules game.Rules, in OpenWagerInput, commitment *[32]byte) error {
	if in.RoomID == "" {
		return ErrEmptyRoomID
	}
	if len(in.RoomID) > rules.MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	if strings.TrimSpace(in.Player) == "" {
		return ErrNotPlayer
	}
	if !in.Choice.Valid() {
		return ErrInvalidChoice
	}
	if in.Stake == 0 {
		return ErrZeroAmount
	}
	if in.Stake < rules.MinBet {
		return ErrAmountTooLow
	}
	if in.Stake > rules.MaxBet {
		return ErrAmountTooHigh
	}
	if commitment != nil && helper.IsZero32(*commitment) {
		return ErrInvalidCommitment
	}
	return nil
}

// RequestOutcome 由玩家提交承诺值，向随机数能力发起请求并进入 processing
func (e *Engine) RequestOutcome(ctx context.Context, roomID, caller string, commitment [32]byte) (out *model.Wager, err error) {
	start := time.Now()
	choice := ""
	defer func() { metrics.RecordWager("commit", resultOf(err), choice, start) }()

	if helper.IsZero32(commitment) {
		return nil, ErrInvalidCommitment
	}
	lock, err := lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer unlockRoom(ctx, lock, roomID)

	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := activeReserve(ctx, tx); err != nil {
			return err
		}
		w, err := lockWager(ctx, tx, roomID)
		if err != nil {
			return err
		}
		choice = game.Choice(w.Choice).String()
		if w.Player != caller {
			return ErrNotPlayer
		}
		if err := e.bindCommitment(ctx, tx, w, commitment); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		logger.WarnCtx(ctx, "request outcome failed", zap.String("room_id", roomID), zap.String("caller", caller), zap.Error(err))
		return nil, err
	}
	logger.InfoCtx(ctx, "outcome requested", zap.String("room_id", roomID), zap.String("commitment", out.Commitment))
	return out, nil
}

// bindCommitment waiting -> processing；随机数请求放在最后，失败时整个事务回滚
func (e *Engine) bindCommitment(ctx context.Context, tx *sqlx.Tx, w *model.Wager, commitment [32]byte) error {
	next, err := state.NextState(w.Status, state.EvtRequestOutcome)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	hexC := helper.FormatCommitment(commitment)
	if err := model.UpdateWagerCommitment(ctx, tx, w.RoomID, hexC, w.Status, next); err != nil {
		if errors.Is(err, model.ErrStaleWrite) {
			return ErrInvalidState
		}
		return err
	}
	w.Status = next
	w.Commitment = hexC
	if err := model.CreateOutbox(ctx, tx, "wager_committed", wagerBizKey(w), wagerPayload("wager_committed", w)); err != nil {
		return err
	}
	if err := e.oracle.Request(ctx, commitment); err != nil {
		if errors.Is(err, randomness.ErrCommitmentUsed) {
			return ErrCommitmentUsed
		}
		return err
	}
	return nil
}

// GetWager 查询注单；已完结的注单优先读 Redis 快照
func (e *Engine) GetWager(ctx context.Context, roomID string) (*model.Wager, error) {
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.WagerCacheKey(roomID)).Bytes(); len(bs) > 0 {
			var w model.Wager
			if json.Unmarshal(bs, &w) == nil {
				return &w, nil
			}
		}
	}
	w, err := model.GetWager(ctx, e.db, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWagerNotFound
	}
	return w, err
}

func lockWager(ctx context.Context, tx *sqlx.Tx, roomID string) (*model.Wager, error) {
	w, err := model.GetWagerForUpdate(ctx, tx, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWagerNotFound
	}
	return w, err
}

func wagerBizKey(w *model.Wager) string { return fmt.Sprintf("%s#%d", w.RoomID, w.RoundNo) }

func wagerPayload(event string, w *model.Wager) map[string]any {
	return map[string]any{
		"event":      event,
		"room_id":    w.RoomID,
		"round_no":   w.RoundNo,
		"player":     w.Player,
		"stake":      w.Stake,
		"choice":     game.Choice(w.Choice).String(),
		"status":     state.Name(w.Status),
		"outcome":    game.Outcome(w.Outcome).String(),
		"commitment": w.Commitment,
		"payout":     w.Payout,
		"refunded":   w.Refunded,
	}
}

// cacheWager 写入完结快照（降级容错）
func cacheWager(ctx context.Context, w *model.Wager) {
	r := infrds.Client()
	if r == nil {
		return
	}
	if b, err := json.Marshal(w); err == nil {
		_ = r.Set(ctx, infrds.WagerCacheKey(w.RoomID), b, wagerCacheTTL).Err()
	}
}

func dropWagerCache(ctx context.Context, roomID string) {
	if r := infrds.Client(); r != nil {
		_ = r.Del(ctx, infrds.WagerCacheKey(roomID)).Err()
	}
}
