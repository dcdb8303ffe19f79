package model

import (
	"context"

	g "github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Wager 对应 wagers 表，room_id 为主键，同一房间同一时刻只有一笔未完结注单
// status: 1=waiting 2=processing 3=finished
// choice: 1=side_a 2=side_b 3=tie；outcome: 0=未开奖 1=side_a_wins 2=side_b_wins 3=tie
type Wager struct {
	RoomID       string `db:"room_id"`        // 房间ID（<=32 字节）
	RoundNo      uint32 `db:"round_no"`       // 房间复用轮次
	Player       string `db:"player"`         // 玩家账户
	Stake        uint64 `db:"stake"`          // 本金（lamports）
	Choice       int8   `db:"choice"`         // 下注方向
	Status       int8   `db:"status"`         // 状态
	Outcome      int8   `db:"outcome"`        // 开奖结果
	Commitment   string `db:"commitment"`     // 随机数承诺值（十六进制，提交前为空）
	Payout       uint64 `db:"payout"`         // 派彩（退款时为退还本金）
	Refunded     bool   `db:"refunded"`       // 是否超时退款
	LastPlayTime int64  `db:"last_play_time"` // 最近一次开局时间（冷却计算）
	CreatedAt    int64  `db:"created_at"`     // 创建时间
	UpdatedAt    int64  `db:"updated_at"`     // 更新时间
}

const wagerColumns = "room_id, round_no, player, stake, choice, status, outcome, commitment, payout, refunded, last_play_time, created_at, updated_at"

// GetWager 按房间查询（不加锁）
func GetWager(ctx context.Context, exec sqlx.ExtContext, roomID string) (*Wager, error) {
	var w Wager
	if err := sqlx.GetContext(ctx, exec, &w, "SELECT "+wagerColumns+" FROM wagers WHERE room_id = ?", roomID); err != nil {
		return nil, errors.Wrapf(err, "get wager %s", roomID)
	}
	return &w, nil
}

// GetWagerForUpdate 按房间查询并加行锁，必须在事务中调用
func GetWagerForUpdate(ctx context.Context, exec sqlx.ExtContext, roomID string) (*Wager, error) {
	var w Wager
	q := "SELECT " + wagerColumns + " FROM wagers WHERE room_id = ?" + forUpdate(exec)
	if err := sqlx.GetContext(ctx, exec, &w, q, roomID); err != nil {
		return nil, errors.Wrapf(err, "get wager %s for update", roomID)
	}
	return &w, nil
}

// Insert 首次使用房间时插入；主键冲突说明并发开局（先写者胜）
func (w *Wager) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := nowMillis()
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := exec.ExecContext(ctx,
		"INSERT INTO wagers ("+wagerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		w.RoomID, w.RoundNo, w.Player, w.Stake, w.Choice, w.Status, w.Outcome, w.Commitment, w.Payout, boolToInt(w.Refunded), w.LastPlayTime, w.CreatedAt, w.UpdatedAt)
	return err
}

// Reopen 复用已完结的房间：重置结果字段并推进轮次，仅当当前状态为 finished 时生效
func (w *Wager) Reopen(ctx context.Context, exec sqlx.ExtContext, finished int8) error {
	w.UpdatedAt = nowMillis()
	res, err := exec.ExecContext(ctx,
		`UPDATE wagers SET round_no = ?, player = ?, stake = ?, choice = ?, status = ?, outcome = 0, commitment = '',
		 payout = 0, refunded = 0, last_play_time = ?, updated_at = ? WHERE room_id = ? AND status = ?`,
		w.RoundNo, w.Player, w.Stake, w.Choice, w.Status, w.LastPlayTime, w.UpdatedAt, w.RoomID, finished)
	if err != nil {
		return errors.Wrap(err, "reopen wager")
	}
	n, err := res.RowsAffected()
	return mustAffectOne(n, err)
}

// UpdateWagerCommitment 绑定承诺值并推进状态（from -> to）
func UpdateWagerCommitment(ctx context.Context, exec sqlx.ExtContext, roomID, commitment string, from, to int8) error {
	res, err := exec.ExecContext(ctx,
		"UPDATE wagers SET commitment = ?, status = ?, updated_at = ? WHERE room_id = ? AND status = ?",
		commitment, to, nowMillis(), roomID, from)
	if err != nil {
		return errors.Wrap(err, "update wager commitment")
	}
	n, err := res.RowsAffected()
	return mustAffectOne(n, err)
}

// FinishWager 写入结果与派彩并推进到终态
func FinishWager(ctx context.Context, exec sqlx.ExtContext, roomID string, outcome int8, payout uint64, refunded bool, from, to int8) error {
	res, err := exec.ExecContext(ctx,
		"UPDATE wagers SET outcome = ?, payout = ?, refunded = ?, status = ?, updated_at = ? WHERE room_id = ? AND status = ?",
		outcome, payout, boolToInt(refunded), to, nowMillis(), roomID, from)
	if err != nil {
		return errors.Wrap(err, "finish wager")
	}
	n, err := res.RowsAffected()
	return mustAffectOne(n, err)
}

// ListWagersByStatus 查询指定状态且 last_play_time <= before 的注单（按时间升序），供后台任务扫描
func ListWagersByStatus(ctx context.Context, exec sqlx.ExtContext, status int8, before int64, limit uint) ([]Wager, error) {
	dialect := "sqlite3"
	if exec.DriverName() == "mysql" {
		dialect = "mysql"
	}
	query, args, err := g.Dialect(dialect).
		From("wagers").
		Select(g.L(wagerColumns)).
		Where(g.C("status").Eq(status), g.C("last_play_time").Lte(before)).
		Order(g.C("last_play_time").Asc()).
		Limit(limit).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build list wagers query")
	}
	var list []Wager
	if err := sqlx.SelectContext(ctx, exec, &list, query, args...); err != nil {
		return nil, errors.Wrap(err, "list wagers")
	}
	return list, nil
}
