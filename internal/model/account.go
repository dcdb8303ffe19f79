package model

import (
	"context"
	"database/sql"

	"coinflip-server/common/logger"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Account 对应 accounts 表（玩家/管理员托管余额）
type Account struct {
	AccountID string `db:"account_id"` // 账户ID（JWT subject）
	Balance   uint64 `db:"balance"`    // 可用余额（lamports）
	Status    int8   `db:"status"`     // 1=正常 0=禁用
	CreatedAt int64  `db:"created_at"` // 创建时间
	UpdatedAt int64  `db:"updated_at"` // 更新时间
}

const accountColumns = "account_id, balance, status, created_at, updated_at"

// GetAccount 查询账户（不加锁）
func GetAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) (*Account, error) {
	var a Account
	err := sqlx.GetContext(ctx, exec, &a, "SELECT "+accountColumns+" FROM accounts WHERE account_id = ?", accountID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error("get account failed", zap.String("account_id", accountID), zap.Error(err))
		}
		return nil, errors.Wrap(err, "get account")
	}
	return &a, nil
}

// GetAccountForUpdate 查询账户并加行锁，必须在事务中调用
func GetAccountForUpdate(ctx context.Context, exec sqlx.ExtContext, accountID string) (*Account, error) {
	var a Account
	q := "SELECT " + accountColumns + " FROM accounts WHERE account_id = ?" + forUpdate(exec)
	err := sqlx.GetContext(ctx, exec, &a, q, accountID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error("get account for update failed", zap.String("account_id", accountID), zap.Error(err))
		}
		return nil, errors.Wrap(err, "get account for update")
	}
	return &a, nil
}

// EnsureAccount 不存在时创建零余额账户
func EnsureAccount(ctx context.Context, exec sqlx.ExtContext, accountID string) error {
	now := nowMillis()
	_, err := exec.ExecContext(ctx,
		insertIgnore(exec)+" accounts (account_id, balance, status, created_at, updated_at) VALUES (?, 0, 1, ?, ?)",
		accountID, now, now)
	return errors.Wrap(err, "ensure account")
}

// UpdateAccountBalance 写入新余额（由调用方完成带溢出检查的计算）
func UpdateAccountBalance(ctx context.Context, exec sqlx.ExtContext, accountID string, balance uint64) error {
	res, err := exec.ExecContext(ctx, "UPDATE accounts SET balance = ?, updated_at = ? WHERE account_id = ?", balance, nowMillis(), accountID)
	if err != nil {
		return errors.Wrap(err, "update account balance")
	}
	n, err := res.RowsAffected()
	return mustAffectOne(n, err)
}
