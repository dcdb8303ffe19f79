package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"coinflip-server/common/logger"
	infmysql "coinflip-server/internal/infra/mysql"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// InitializeReserve 创建单例资金池，调用方成为 operator；不受暂停影响
func (e *Engine) InitializeReserve(ctx context.Context, operator string) (out *model.HouseReserve, err error) {
	start := time.Now()
	defer func() { metrics.RecordTreasury("init", resultOf(err), start) }()

	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, ErrInvalidInput
	}
	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := model.InsertReserve(ctx, tx, operator); err != nil {
			if infmysql.IsDuplicateKey(err) {
				return ErrReserveExists
			}
			return err
		}
		if err := model.EnsureAccount(ctx, tx, operator); err != nil {
			return err
		}
		r, err := lockReserve(ctx, tx)
		if err != nil {
			return err
		}
		out = r
		return model.CreateOutbox(ctx, tx, "reserve_initialized", "reserve", map[string]any{
			"event":    "reserve_initialized",
			"operator": operator,
		})
	})
	if err != nil {
		logger.WarnCtx(ctx, "initialize reserve failed", zap.String("operator", operator), zap.Error(err))
		return nil, err
	}
	logger.InfoCtx(ctx, "house reserve initialized", zap.String("operator", operator))
	return out, nil
}

// Deposit 任意账户向资金池注资
func (e *Engine) Deposit(ctx context.Context, caller string, amount uint64) (out *model.HouseReserve, err error) {
	start := time.Now()
	defer func() { metrics.RecordTreasury("deposit", resultOf(err), start) }()

	if amount == 0 {
		return nil, ErrZeroAmount
	}
	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := activeReserve(ctx, tx)
		if err != nil {
			return err
		}
		if err := accountToReserve(ctx, tx, r, caller, amount, model.BizDeposit, transferRef{remark: "reserve deposit"}); err != nil {
			return err
		}
		out = r
		return model.CreateOutbox(ctx, tx, "reserve_deposit", caller, map[string]any{
			"event":   "reserve_deposit",
			"from":    caller,
			"amount":  amount,
			"balance": r.Balance,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.SetReserveBalance(out.Balance)
	logger.InfoCtx(ctx, "reserve deposit", zap.String("from", caller), zap.Uint64("amount", amount), zap.Uint64("balance", out.Balance))
	return out, nil
}

// Withdraw 仅 operator 可从资金池提取到自己的账户
func (e *Engine) Withdraw(ctx context.Context, caller string, amount uint64) (out *model.HouseReserve, err error) {
	start := time.Now()
	defer func() { metrics.RecordTreasury("withdraw", resultOf(err), start) }()

	if amount == 0 {
		return nil, ErrZeroAmount
	}
	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := activeReserve(ctx, tx)
		if err != nil {
			return err
		}
		if caller != r.Operator {
			return ErrNotOperator
		}
		if r.Balance < amount {
			return ErrInsufficientFunds
		}
		if err := reserveToAccount(ctx, tx, r, caller, amount, model.BizWithdraw, transferRef{remark: "reserve withdraw"}); err != nil {
			return err
		}
		out = r
		return model.CreateOutbox(ctx, tx, "reserve_withdraw", caller, map[string]any{
			"event":   "reserve_withdraw",
			"to":      caller,
			"amount":  amount,
			"balance": r.Balance,
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.SetReserveBalance(out.Balance)
	logger.InfoCtx(ctx, "reserve withdraw", zap.String("to", caller), zap.Uint64("amount", amount), zap.Uint64("balance", out.Balance))
	return out, nil
}

// TogglePause 仅 operator 可切换暂停状态；暂停中也可调用
func (e *Engine) TogglePause(ctx context.Context, caller string) (out *model.HouseReserve, err error) {
	start := time.Now()
	defer func() { metrics.RecordTreasury("pause", resultOf(err), start) }()

	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := lockReserve(ctx, tx)
		if err != nil {
			return err
		}
		if caller != r.Operator {
			return ErrNotOperator
		}
		r.Paused = !r.Paused
		if err := model.SetReservePaused(ctx, tx, r.Paused); err != nil {
			return err
		}
		out = r
		return model.CreateOutbox(ctx, tx, "reserve_paused", "reserve", map[string]any{
			"event":  "reserve_paused",
			"paused": r.Paused,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "reserve pause toggled", zap.Bool("paused", out.Paused))
	return out, nil
}

// GetReserve 查询资金池（不受暂停影响）
func (e *Engine) GetReserve(ctx context.Context) (*model.HouseReserve, error) {
	r, err := model.GetReserve(ctx, e.db)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReserveNotFound
	}
	return r, err
}

func resultOf(err error) string {
	if err != nil {
		return "fail"
	}
	return "success"
}
