package service

import (
	"context"
	"database/sql"
	"errors"

	"coinflip-server/common/helper"
	"coinflip-server/common/logger"
	infmysql "coinflip-server/internal/infra/mysql"
	"coinflip-server/internal/model"

	"github.com/jmoiron/sqlx"
)

// transferRef 账本关联信息
type transferRef struct {
	roomID  string
	roundNo uint32
	remark  string
}

// accountToReserve 账户 -> 资金池：扣减账户、增加资金池余额，双边记账
// 全部校验在写入前完成
func accountToReserve(ctx context.Context, tx *sqlx.Tx, r *model.HouseReserve, accountID string, amount uint64, bizType int, ref transferRef) error {
	acc, err := model.GetAccountForUpdate(ctx, tx, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return ErrInsufficientBalance
	}
	newReserve, ok := creditBalance(tx, r.Balance, amount)
	if !ok {
		return ErrArithmeticOverflow
	}
	newBalance := acc.Balance - amount

	if err := model.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
		return err
	}
	if err := model.UpdateReserveBalance(ctx, tx, newReserve); err != nil {
		return err
	}
	if err := writeLedgers(ctx, tx, bizType, amount, ref,
		ledgerSide{accountID, acc.Balance, newBalance},
		ledgerSide{model.HouseAccountID, r.Balance, newReserve}); err != nil {
		return err
	}
	r.Balance = newReserve
	return nil
}

// reserveToAccount 资金池 -> 账户；资金池余额不足返回 ErrInsufficientFunds
func reserveToAccount(ctx context.Context, tx *sqlx.Tx, r *model.HouseReserve, accountID string, amount uint64, bizType int, ref transferRef) error {
	if amount == 0 {
		return nil
	}
	newReserve, ok := helper.CheckedSub(r.Balance, amount)
	if !ok {
		return ErrInsufficientFunds
	}
	if err := model.EnsureAccount(ctx, tx, accountID); err != nil {
		return err
	}
	acc, err := model.GetAccountForUpdate(ctx, tx, accountID)
	if err != nil {
		return err
	}
	newBalance, ok := creditBalance(tx, acc.Balance, amount)
	if !ok {
		return ErrArithmeticOverflow
	}

	if err := model.UpdateReserveBalance(ctx, tx, newReserve); err != nil {
		return err
	}
	if err := model.UpdateAccountBalance(ctx, tx, accountID, newBalance); err != nil {
		return err
	}
	if err := writeLedgers(ctx, tx, bizType, amount, ref,
		ledgerSide{model.HouseAccountID, r.Balance, newReserve},
		ledgerSide{accountID, acc.Balance, newBalance}); err != nil {
		return err
	}
	r.Balance = newReserve
	return nil
}

// creditBalance a+b，超出 uint64 或存储上限时 ok=false
func creditBalance(tx *sqlx.Tx, a, b uint64) (uint64, bool) {
	v, ok := helper.CheckedAdd(a, b)
	return v, ok && v <= infmysql.MaxBalance(tx.DriverName())
}

type ledgerSide struct {
	accountID     string
	before, after uint64
}

func writeLedgers(ctx context.Context, tx *sqlx.Tx, bizType int, amount uint64, ref transferRef, sides ...ledgerSide) error {
	traceID := logger.GetTraceID(ctx)
	for _, s := range sides {
		l := &model.WalletLedger{
			AccountID:    s.accountID,
			BizType:      bizType,
			Amount:       amount,
			BeforeAmount: s.before,
			AfterAmount:  s.after,
			RoomID:       ref.roomID,
			RoundNo:      ref.roundNo,
			Remark:       ref.remark,
			TraceID:      traceID,
		}
		if err := l.Insert(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
