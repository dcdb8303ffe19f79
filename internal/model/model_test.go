package model

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	infmysql "coinflip-server/internal/infra/mysql"

	"github.com/jmoiron/sqlx"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := infmysql.Open(ctx, infmysql.Options{Driver: infmysql.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestWagerConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	w := &Wager{RoomID: "r1", RoundNo: 1, Player: "alice", Stake: 10, Choice: 1, Status: 1, LastPlayTime: 100}
	if err := w.Insert(ctx, db); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := w.Insert(ctx, db); !infmysql.IsDuplicateKey(err) {
		t.Fatalf("second insert err = %v, want duplicate key", err)
	}

	// waiting -> processing 只生效一次
	if err := UpdateWagerCommitment(ctx, db, "r1", "ab", 1, 2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := UpdateWagerCommitment(ctx, db, "r1", "cd", 1, 2); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("stale commit err = %v", err)
	}

	// 未完结时不能复用
	w.RoundNo = 2
	if err := w.Reopen(ctx, db, 3); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("reopen live err = %v", err)
	}

	if err := FinishWager(ctx, db, "r1", 1, 20, false, 2, 3); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, err := GetWager(ctx, db, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != 3 || got.Outcome != 1 || got.Payout != 20 || got.Commitment != "ab" {
		t.Fatalf("finished wager = %+v", got)
	}

	w.Player, w.LastPlayTime = "bob", 200
	if err := w.Reopen(ctx, db, 3); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ = GetWager(ctx, db, "r1")
	if got.RoundNo != 2 || got.Player != "bob" || got.Outcome != 0 || got.Commitment != "" || got.Payout != 0 {
		t.Fatalf("reopened wager = %+v", got)
	}

	if _, err := GetWager(ctx, db, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing wager err = %v, want sql.ErrNoRows", err)
	}
}

func TestListWagersByStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	for i, room := range []string{"c", "a", "b"} {
		w := &Wager{RoomID: room, RoundNo: 1, Player: "p", Stake: 1, Choice: 1, Status: 2, LastPlayTime: int64(300 - i*100)}
		if err := w.Insert(ctx, db); err != nil {
			t.Fatalf("insert %s: %v", room, err)
		}
	}
	list, err := ListWagersByStatus(ctx, db, 2, 200, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// last_play_time: c=300 a=200 b=100
	if len(list) != 2 || list[0].RoomID != "b" || list[1].RoomID != "a" {
		t.Fatalf("list = %+v", list)
	}
	if list, _ := ListWagersByStatus(ctx, db, 1, 1000, 10); len(list) != 0 {
		t.Fatalf("waiting list = %+v", list)
	}
}

func TestAccountAndLedger(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := EnsureAccount(ctx, db, "alice"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// 重复创建被忽略
	if err := EnsureAccount(ctx, db, "alice"); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if err := UpdateAccountBalance(ctx, db, "alice", 42); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	a, err := GetAccount(ctx, db, "alice")
	if err != nil || a.Balance != 42 {
		t.Fatalf("account = %+v, %v", a, err)
	}

	for i := 0; i < 3; i++ {
		l := &WalletLedger{AccountID: "alice", BizType: BizAdjust, Amount: uint64(i + 1), AfterAmount: uint64(i + 1)}
		if err := l.Insert(ctx, db); err != nil {
			t.Fatalf("ledger insert: %v", err)
		}
	}
	list, err := ListLedgerByAccount(ctx, db, "alice", 2)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	if len(list) != 2 || list[0].BizTypeStr != BizTypeName(BizAdjust) {
		t.Fatalf("ledger = %+v", list)
	}
}
