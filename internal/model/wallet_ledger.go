package model

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// HouseAccountID 资金池在账本中的账户名
const HouseAccountID = "__house__"

// 账本业务类型
const (
	BizBet      = 1 // 下注：玩家 -> 资金池
	BizSettle   = 2 // 派彩：资金池 -> 玩家
	BizRefund   = 3 // 超时退款：资金池 -> 玩家
	BizAdjust   = 4 // 后台调整
	BizDeposit  = 5 // 注资：调用方 -> 资金池
	BizWithdraw = 6 // 提取：资金池 -> 管理员
)

var bizTypeNames = map[int]string{
	BizBet:      "bet",
	BizSettle:   "settle",
	BizRefund:   "refund",
	BizAdjust:   "adjust",
	BizDeposit:  "deposit",
	BizWithdraw: "withdraw",
}

// BizTypeName 业务类型名称
func BizTypeName(code int) string { return bizTypeNames[code] }

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// 金额非负；方向由 before_amount/after_amount 推导
type WalletLedger struct {
	ID           int64  `db:"id"`
	AccountID    string `db:"account_id"`
	BizType      int    `db:"biz_type"`
	BizTypeStr   string `db:"biz_type_str"`
	Amount       uint64 `db:"amount"`
	BeforeAmount uint64 `db:"before_amount"`
	AfterAmount  uint64 `db:"after_amount"`
	RoomID       string `db:"room_id"`
	RoundNo      uint32 `db:"round_no"`
	Remark       string `db:"remark"`
	TraceID      string `db:"trace_id"`
	CreatedAt    int64  `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	if l.BizTypeStr == "" {
		l.BizTypeStr = BizTypeName(l.BizType)
	}
	l.CreatedAt = nowMillis()
	_, err := exec.ExecContext(ctx,
		`INSERT INTO wallet_ledger (account_id, biz_type, biz_type_str, amount, before_amount, after_amount, room_id, round_no, remark, trace_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.AccountID, l.BizType, l.BizTypeStr, l.Amount, l.BeforeAmount, l.AfterAmount, l.RoomID, l.RoundNo, l.Remark, l.TraceID, l.CreatedAt)
	return errors.Wrap(err, "insert ledger")
}

// ListLedgerByAccount 按账户倒序查询最近的账本记录
func ListLedgerByAccount(ctx context.Context, exec sqlx.ExtContext, accountID string, limit int) ([]WalletLedger, error) {
	var list []WalletLedger
	err := sqlx.SelectContext(ctx, exec, &list,
		`SELECT id, account_id, biz_type, biz_type_str, amount, before_amount, after_amount, room_id, round_no, remark, trace_id, created_at
		 FROM wallet_ledger WHERE account_id = ? ORDER BY id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list ledger")
	}
	return list, nil
}
