package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"coinflip-server/common/helper"
	"coinflip-server/common/logger"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AdjustInput 后台调整托管余额
type AdjustInput struct {
	AccountID string
	Amount    uint64 // lamports，绝对值
	Debit     bool   // true 为扣减
	Remark    string
}

// AccountView 账户及最近账本
type AccountView struct {
	Account *model.Account
	Ledger  []model.WalletLedger
}

// AdjustAccount 管理员为账户加/减款；资金池存在且暂停时拒绝
func (e *Engine) AdjustAccount(ctx context.Context, in AdjustInput) (out *model.Account, err error) {
	start := time.Now()
	defer func() { metrics.RecordTreasury("adjust", resultOf(err), start) }()

	in.AccountID = strings.TrimSpace(in.AccountID)
	if in.AccountID == "" || in.AccountID == model.HouseAccountID {
		return nil, ErrInvalidInput
	}
	if in.Amount == 0 {
		return nil, ErrZeroAmount
	}
	err = e.withTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		r, err := lockReserve(ctx, tx)
		if err != nil && !errors.Is(err, ErrReserveNotFound) {
			return err
		}
		if r != nil && r.Paused {
			return ErrProgramPaused
		}
		if err := model.EnsureAccount(ctx, tx, in.AccountID); err != nil {
			return err
		}
		acc, err := model.GetAccountForUpdate(ctx, tx, in.AccountID)
		if err != nil {
			return err
		}
		before := acc.Balance
		if in.Debit {
			v, ok := helper.CheckedSub(before, in.Amount)
			if !ok {
				return ErrInsufficientBalance
			}
			acc.Balance = v
		} else {
			v, ok := creditBalance(tx, before, in.Amount)
			if !ok {
				return ErrArithmeticOverflow
			}
			acc.Balance = v
		}
		if err := model.UpdateAccountBalance(ctx, tx, in.AccountID, acc.Balance); err != nil {
			return err
		}
		remark := in.Remark
		if remark == "" {
			remark = "admin adjust"
		}
		if err := writeLedgers(ctx, tx, model.BizAdjust, in.Amount, transferRef{remark: remark},
			ledgerSide{in.AccountID, before, acc.Balance}); err != nil {
			return err
		}
		out = acc
		return model.CreateOutbox(ctx, tx, "account_adjusted", in.AccountID, map[string]any{
			"event":      "account_adjusted",
			"account_id": in.AccountID,
			"amount":     in.Amount,
			"debit":      in.Debit,
			"balance":    acc.Balance,
		})
	})
	if err != nil {
		logger.WarnCtx(ctx, "adjust account failed", zap.String("account_id", in.AccountID), zap.Error(err))
		return nil, err
	}
	logger.InfoCtx(ctx, "account adjusted",
		zap.String("account_id", in.AccountID), zap.Uint64("amount", in.Amount), zap.Bool("debit", in.Debit), zap.Uint64("balance", out.Balance))
	return out, nil
}

// GetAccount 查询账户与最近 ledgerLimit 条账本
func (e *Engine) GetAccount(ctx context.Context, accountID string, ledgerLimit int) (*AccountView, error) {
	acc, err := model.GetAccount(ctx, e.db, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	view := &AccountView{Account: acc}
	if ledgerLimit > 0 {
		if view.Ledger, err = model.ListLedgerByAccount(ctx, e.db, accountID, ledgerLimit); err != nil {
			return nil, err
		}
	}
	return view, nil
}
