package model

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ReserveID house_reserve 单例行主键
const ReserveID = 1

// HouseReserve 对应 house_reserve 表（单例资金池）
type HouseReserve struct {
	ID        int64  `db:"id"`         // 固定为 1
	Operator  string `db:"operator"`   // 管理员账户
	Balance   uint64 `db:"balance"`    // 资金池余额（lamports）
	Paused    bool   `db:"paused"`     // 暂停开关
	CreatedAt int64  `db:"created_at"` // 创建时间
	UpdatedAt int64  `db:"updated_at"` // 更新时间
}

const reserveColumns = "id, operator, balance, paused, created_at, updated_at"

// InsertReserve 创建单例资金池；已存在时返回唯一键冲突错误
func InsertReserve(ctx context.Context, exec sqlx.ExtContext, operator string) error {
	now := nowMillis()
	_, err := exec.ExecContext(ctx,
		"INSERT INTO house_reserve (id, operator, balance, paused, created_at, updated_at) VALUES (?, ?, 0, 0, ?, ?)",
		ReserveID, operator, now, now)
	return err
}

// GetReserve 读取资金池（不加锁）
func GetReserve(ctx context.Context, exec sqlx.ExtContext) (*HouseReserve, error) {
	var r HouseReserve
	if err := sqlx.GetContext(ctx, exec, &r, "SELECT "+reserveColumns+" FROM house_reserve WHERE id = ?", ReserveID); err != nil {
		return nil, errors.Wrap(err, "get reserve")
	}
	return &r, nil
}

// GetReserveForUpdate 读取资金池并加行锁，必须在事务中调用
func GetReserveForUpdate(ctx context.Context, exec sqlx.ExtContext) (*HouseReserve, error) {
	var r HouseReserve
	q := "SELECT " + reserveColumns + " FROM house_reserve WHERE id = ?" + forUpdate(exec)
	if err := sqlx.GetContext(ctx, exec, &r, q, ReserveID); err != nil {
		return nil, errors.Wrap(err, "get reserve for update")
	}
	return &r, nil
}

// UpdateReserveBalance 写入新余额（由调用方完成带溢出检查的计算）
func UpdateReserveBalance(ctx context.Context, exec sqlx.ExtContext, balance uint64) error {
	res, err := exec.ExecContext(ctx, "UPDATE house_reserve SET balance = ?, updated_at = ? WHERE id = ?", balance, nowMillis(), ReserveID)
	if err != nil {
		return errors.Wrap(err, "update reserve balance")
	}
	n, err := res.RowsAffected()
	return mustAffectOne(n, err)
}

// SetReservePaused 设置暂停开关
func SetReservePaused(ctx context.Context, exec sqlx.ExtContext, paused bool) error {
	res, err := exec.ExecContext(ctx, "UPDATE house_reserve SET paused = ?, updated_at = ? WHERE id = ?", boolToInt(paused), nowMillis(), ReserveID)
	if err != nil {
		return errors.Wrap(err, "set reserve paused")
	}
	n, err := res.RowsAffected()
	return mustAffectOne(n, err)
}
