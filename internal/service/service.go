package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/config"
	"coinflip-server/internal/game"
	infrds "coinflip-server/internal/infra/redis"
	"coinflip-server/internal/model"
	"coinflip-server/internal/randomness"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// 默认事务超时时间（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// 房间进行中锁 TTL，覆盖单次事务的最长耗时即可
const roomLockTTL = 10 * time.Second

// TreasuryService 资金池管理
type TreasuryService interface {
	InitializeReserve(ctx context.Context, operator string) (*model.HouseReserve, error)
	Deposit(ctx context.Context, caller string, amount uint64) (*model.HouseReserve, error)
	Withdraw(ctx context.Context, caller string, amount uint64) (*model.HouseReserve, error)
	TogglePause(ctx context.Context, caller string) (*model.HouseReserve, error)
	GetReserve(ctx context.Context) (*model.HouseReserve, error)
}

// WagerService 注单生命周期：托管 -> 请求随机数 -> 开奖（或超时退款）
type WagerService interface {
	OpenWager(ctx context.Context, in OpenWagerInput) (*model.Wager, error)
	OpenWagerAndRequest(ctx context.Context, in OpenWagerInput, commitment [32]byte) (*model.Wager, error)
	RequestOutcome(ctx context.Context, roomID, caller string, commitment [32]byte) (*model.Wager, error)
	ResolveOutcome(ctx context.Context, roomID string) (*model.Wager, error)
	RefundWager(ctx context.Context, roomID, caller string) (*model.Wager, error)
	GetWager(ctx context.Context, roomID string) (*model.Wager, error)
}

// AccountService 托管账户
type AccountService interface {
	AdjustAccount(ctx context.Context, in AdjustInput) (*model.Account, error)
	GetAccount(ctx context.Context, accountID string, ledgerLimit int) (*AccountView, error)
}

// Engine 实现以上全部服务，每个操作是一个数据库事务
type Engine struct {
	db     *sqlx.DB
	oracle randomness.Oracle
	rules  func() game.Rules
	now    func() time.Time
}

type Option func(*Engine)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithRules 覆盖规则来源；默认每次调用读取当前配置
func WithRules(fn func() game.Rules) Option { return func(e *Engine) { e.rules = fn } }

func New(db *sqlx.DB, oracle randomness.Oracle, opts ...Option) *Engine {
	e := &Engine{db: db, oracle: oracle, rules: config.GameRules, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// withTx 开启事务执行 fn，fn 返回错误时整体回滚
func (e *Engine) withTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := e.db.BeginTxx(txCtx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(txCtx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockReserve 读取并锁定资金池；所有写操作先锁资金池，保证加锁顺序一致
func lockReserve(ctx context.Context, tx *sqlx.Tx) (*model.HouseReserve, error) {
	r, err := model.GetReserveForUpdate(ctx, tx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReserveNotFound
	}
	return r, err
}

func activeReserve(ctx context.Context, tx *sqlx.Tx) (*model.HouseReserve, error) {
	r, err := lockReserve(ctx, tx)
	if err != nil {
		return nil, err
	}
	if r.Paused {
		return nil, ErrProgramPaused
	}
	return r, nil
}

// lockRoom 获取房间进行中锁；Redis 未配置时返回 nil 锁
func lockRoom(ctx context.Context, roomID string) (*infrds.Lock, error) {
	l, err := infrds.TryLock(ctx, infrds.RoomLockKey(roomID), roomLockTTL)
	if errors.Is(err, infrds.ErrLockHeld) {
		return nil, ErrDuplicateInFlight
	}
	if err != nil {
		// Redis 故障时降级为仅依赖数据库行锁
		logger.WarnCtx(ctx, "room lock unavailable", zap.String("room_id", roomID), zap.Error(err))
		return nil, nil
	}
	return l, nil
}

func unlockRoom(ctx context.Context, l *infrds.Lock, roomID string) {
	ok, err := l.Release(context.WithoutCancel(ctx))
	if err != nil {
		logger.WarnCtx(ctx, "release room lock failed", zap.String("room_id", roomID), zap.Error(err))
	} else if !ok {
		logger.WarnCtx(ctx, "room lock expired before release", zap.String("room_id", roomID))
	}
}
