package service

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"coinflip-server/internal/game"
	infmysql "coinflip-server/internal/infra/mysql"
	"coinflip-server/internal/model"
	"coinflip-server/internal/randomness"
	"coinflip-server/internal/state"
)

const (
	operator = "op"
	player   = "alice"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	ctx    context.Context
	e      *Engine
	oracle *randomness.Memory
	clock  *fakeClock
	rules  game.Rules
}

func testRules() game.Rules {
	r := game.DefaultRules()
	r.MinBet = 1
	r.MaxBet = 1_000
	return r
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := infmysql.Open(ctx, infmysql.Options{Driver: infmysql.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := model.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	h := &harness{
		ctx:    ctx,
		oracle: randomness.NewMemory(),
		clock:  &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		rules:  testRules(),
	}
	h.e = New(db, h.oracle, WithClock(h.clock.Now), WithRules(func() game.Rules { return h.rules }))
	return h
}

// setup 初始化资金池并注资 reserve，给玩家充值 balance
func (h *harness) setup(t *testing.T, reserve, balance uint64) {
	t.Helper()
	if _, err := h.e.InitializeReserve(h.ctx, operator); err != nil {
		t.Fatalf("init reserve: %v", err)
	}
	if reserve > 0 {
		h.credit(t, operator, reserve)
		if _, err := h.e.Deposit(h.ctx, operator, reserve); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	if balance > 0 {
		h.credit(t, player, balance)
	}
}

func (h *harness) credit(t *testing.T, account string, amount uint64) {
	t.Helper()
	if _, err := h.e.AdjustAccount(h.ctx, AdjustInput{AccountID: account, Amount: amount}); err != nil {
		t.Fatalf("credit %s: %v", account, err)
	}
}

func (h *harness) reserveBalance(t *testing.T) uint64 {
	t.Helper()
	r, err := h.e.GetReserve(h.ctx)
	if err != nil {
		t.Fatalf("get reserve: %v", err)
	}
	return r.Balance
}

func (h *harness) balance(t *testing.T, account string) uint64 {
	t.Helper()
	v, err := h.e.GetAccount(h.ctx, account, 0)
	if err != nil {
		t.Fatalf("get account %s: %v", account, err)
	}
	return v.Account.Balance
}

func (h *harness) outboxCount(t *testing.T, topic string) int {
	t.Helper()
	var n int
	if err := h.e.db.GetContext(h.ctx, &n, "SELECT COUNT(*) FROM outbox WHERE topic = ?", topic); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return n
}

// valueForBucket 构造分桶为 b 的非零随机值
func valueForBucket(b uint64) [32]byte {
	var v [32]byte
	binary.LittleEndian.PutUint64(v[:8], b)
	v[31] = 0xff
	return v
}

func commitment(n byte) [32]byte {
	var c [32]byte
	c[0] = n
	c[31] = 0x5a
	return c
}

// play 开局、提交、填充随机数并开奖
func (h *harness) play(t *testing.T, room string, stake uint64, choice game.Choice, c [32]byte, bucket uint64) *model.Wager {
	t.Helper()
	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: room, Player: player, Stake: stake, Choice: choice}); err != nil {
		t.Fatalf("open wager: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, room, player, c); err != nil {
		t.Fatalf("request outcome: %v", err)
	}
	if err := h.oracle.Fulfill(h.ctx, c, valueForBucket(bucket)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	w, err := h.e.ResolveOutcome(h.ctx, room)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return w
}

func TestFullLifecycleSideAWins(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 50)

	w, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "room-1", Player: player, Stake: 10, Choice: game.ChoiceSideA})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if w.Status != state.StatusWaiting || w.RoundNo != 1 {
		t.Fatalf("unexpected wager after open: %+v", w)
	}
	if got := h.reserveBalance(t); got != 110 {
		t.Fatalf("reserve after escrow = %d, want 110", got)
	}
	if got := h.balance(t, player); got != 40 {
		t.Fatalf("player after escrow = %d, want 40", got)
	}

	// 未提交承诺值时不能开奖
	if _, err := h.e.ResolveOutcome(h.ctx, "room-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("resolve before commit: %v", err)
	}

	c := commitment(1)
	w, err = h.e.RequestOutcome(h.ctx, "room-1", player, c)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if w.Status != state.StatusProcessing {
		t.Fatalf("status after commit = %d", w.Status)
	}

	if _, err := h.e.ResolveOutcome(h.ctx, "room-1"); !errors.Is(err, ErrStillProcessing) {
		t.Fatalf("resolve before fulfill: %v", err)
	}
	if got := h.reserveBalance(t); got != 110 {
		t.Fatalf("pending poll moved funds: %d", got)
	}

	if err := h.oracle.Fulfill(h.ctx, c, valueForBucket(50)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	w, err = h.e.ResolveOutcome(h.ctx, "room-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if game.Outcome(w.Outcome) != game.OutcomeSideAWins || w.Payout != 20 || w.Status != state.StatusFinished {
		t.Fatalf("unexpected settlement: %+v", w)
	}
	if got := h.reserveBalance(t); got != 90 {
		t.Fatalf("reserve after settle = %d, want 90", got)
	}
	if got := h.balance(t, player); got != 60 {
		t.Fatalf("player after settle = %d, want 60", got)
	}

	if _, err := h.e.ResolveOutcome(h.ctx, "room-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double resolve: %v", err)
	}
	if got := h.reserveBalance(t); got != 90 {
		t.Fatalf("double resolve moved funds: %d", got)
	}

	for _, topic := range []string{"wager_opened", "wager_committed", "wager_settled"} {
		if n := h.outboxCount(t, topic); n != 1 {
			t.Errorf("outbox %s = %d, want 1", topic, n)
		}
	}

	got, err := h.e.GetWager(h.ctx, "room-1")
	if err != nil || got.Payout != 20 {
		t.Fatalf("get wager: %+v %v", got, err)
	}
}

func TestSettlePayoutTable(t *testing.T) {
	cases := []struct {
		name        string
		choice      game.Choice
		bucket      uint64
		tieRefunds  bool
		wantOutcome game.Outcome
		wantPayout  uint64
	}{
		{"side a loses", game.ChoiceSideA, 150, true, game.OutcomeSideBWins, 0},
		{"side b wins", game.ChoiceSideB, 199, true, game.OutcomeSideBWins, 20},
		{"tie refunds side bet", game.ChoiceSideB, 5, true, game.OutcomeTie, 10},
		{"tie keeps side bet", game.ChoiceSideA, 5, false, game.OutcomeTie, 0},
		{"tie on tie", game.ChoiceTie, 0, true, game.OutcomeTie, 60},
		{"tie misses", game.ChoiceTie, 10, true, game.OutcomeSideAWins, 0},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.rules.TieRefundsSideBets = tc.tieRefunds
			h.setup(t, 100, 10)

			w := h.play(t, "room", 10, tc.choice, commitment(byte(i+1)), tc.bucket)
			if game.Outcome(w.Outcome) != tc.wantOutcome || w.Payout != tc.wantPayout {
				t.Fatalf("got outcome=%s payout=%d, want %s %d", game.Outcome(w.Outcome), w.Payout, tc.wantOutcome, tc.wantPayout)
			}
			// 资金守恒：资金池减少量等于派彩
			if got, want := h.reserveBalance(t), 110-tc.wantPayout; got != want {
				t.Fatalf("reserve = %d, want %d", got, want)
			}
			if got := h.balance(t, player); got != tc.wantPayout {
				t.Fatalf("player = %d, want %d", got, tc.wantPayout)
			}
		})
	}
}

func TestOpenWagerValidation(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	cases := []struct {
		name string
		in   OpenWagerInput
		want error
	}{
		{"empty room", OpenWagerInput{RoomID: " ", Player: player, Stake: 10, Choice: game.ChoiceSideA}, ErrEmptyRoomID},
		{"long room", OpenWagerInput{RoomID: strings.Repeat("r", 33), Player: player, Stake: 10, Choice: game.ChoiceSideA}, ErrRoomIDTooLong},
		{"bad choice", OpenWagerInput{RoomID: "r", Player: player, Stake: 10, Choice: game.ChoiceNone}, ErrInvalidChoice},
		{"zero stake", OpenWagerInput{RoomID: "r", Player: player, Stake: 0, Choice: game.ChoiceSideA}, ErrZeroAmount},
		{"too high", OpenWagerInput{RoomID: "r", Player: player, Stake: 1_001, Choice: game.ChoiceSideA}, ErrAmountTooHigh},
		{"solvency", OpenWagerInput{RoomID: "r", Player: player, Stake: 51, Choice: game.ChoiceSideA}, ErrInsufficientFunds},
		{"tie solvency", OpenWagerInput{RoomID: "r", Player: player, Stake: 17, Choice: game.ChoiceTie}, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.e.OpenWager(h.ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	h.rules.MinBet = 5
	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "r", Player: player, Stake: 4, Choice: game.ChoiceSideA}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("below min: %v", err)
	}

	// 失败路径不产生任何状态变化
	if got := h.reserveBalance(t); got != 100 {
		t.Fatalf("reserve changed: %d", got)
	}
	if got := h.balance(t, player); got != 100 {
		t.Fatalf("player changed: %d", got)
	}
	if _, err := h.e.GetWager(h.ctx, "r"); !errors.Is(err, ErrWagerNotFound) {
		t.Fatalf("wager created on failure: %v", err)
	}
}

func TestOpenWagerInsufficientBalance(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 5)

	_, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "r", Player: player, Stake: 10, Choice: game.ChoiceSideA})
	if !errors.Is(err, ErrInsufficientBalance) || !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v", err)
	}
	_, err = h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "r", Player: "nobody", Stake: 10, Choice: game.ChoiceSideA})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("unknown account: %v", err)
	}
}

func TestRoomReuseAndCooldown(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "room", Player: player, Stake: 10, Choice: game.ChoiceSideA}); err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "room", Player: player, Stake: 10, Choice: game.ChoiceSideB})
	if !errors.Is(err, ErrWagerInProgress) || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("live room: %v", err)
	}

	c := commitment(7)
	if _, err := h.e.RequestOutcome(h.ctx, "room", player, c); err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = h.oracle.Fulfill(h.ctx, c, valueForBucket(150))
	if _, err := h.e.ResolveOutcome(h.ctx, "room"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	h.clock.Advance(10 * time.Second)
	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "room", Player: player, Stake: 10, Choice: game.ChoiceSideA}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("cooldown: %v", err)
	}

	h.clock.Advance(21 * time.Second)
	w, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "room", Player: player, Stake: 10, Choice: game.ChoiceSideA})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if w.RoundNo != 2 || w.Status != state.StatusWaiting || w.Commitment != "" {
		t.Fatalf("reopened wager: %+v", w)
	}
	got, _ := h.e.GetWager(h.ctx, "room")
	if got.Outcome != 0 || got.Payout != 0 || got.RoundNo != 2 {
		t.Fatalf("stored reopened wager: %+v", got)
	}
}

func TestRequestOutcomeGuards(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	for _, room := range []string{"a", "b"} {
		if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: room, Player: player, Stake: 10, Choice: game.ChoiceSideA}); err != nil {
			t.Fatalf("open %s: %v", room, err)
		}
	}
	c := commitment(3)
	if _, err := h.e.RequestOutcome(h.ctx, "a", "mallory", c); !errors.Is(err, ErrNotPlayer) {
		t.Fatalf("stranger commit: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "a", player, [32]byte{}); !errors.Is(err, ErrInvalidCommitment) {
		t.Fatalf("zero commitment: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "missing", player, c); !errors.Is(err, ErrWagerNotFound) {
		t.Fatalf("missing room: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "a", player, c); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "a", player, commitment(4)); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second commit: %v", err)
	}

	// 已使用的承诺值不可复用，且失败时注单保持 waiting
	if _, err := h.e.RequestOutcome(h.ctx, "b", player, c); !errors.Is(err, ErrCommitmentUsed) {
		t.Fatalf("reused commitment: %v", err)
	}
	w, _ := h.e.GetWager(h.ctx, "b")
	if w.Status != state.StatusWaiting || w.Commitment != "" {
		t.Fatalf("wager mutated on failed commit: %+v", w)
	}
}

func TestOpenWagerAndRequest(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	c := commitment(9)
	w, err := h.e.OpenWagerAndRequest(h.ctx, OpenWagerInput{RoomID: "fused", Player: player, Stake: 10, Choice: game.ChoiceSideB}, c)
	if err != nil {
		t.Fatalf("fused open: %v", err)
	}
	if w.Status != state.StatusProcessing || w.Commitment == "" {
		t.Fatalf("fused wager: %+v", w)
	}

	// 承诺值已用：开局与托管一并回滚
	_, err = h.e.OpenWagerAndRequest(h.ctx, OpenWagerInput{RoomID: "other", Player: player, Stake: 10, Choice: game.ChoiceSideB}, c)
	if !errors.Is(err, ErrCommitmentUsed) {
		t.Fatalf("fused reuse: %v", err)
	}
	if _, err := h.e.GetWager(h.ctx, "other"); !errors.Is(err, ErrWagerNotFound) {
		t.Fatalf("fused failure left a wager: %v", err)
	}
	if got := h.balance(t, player); got != 90 {
		t.Fatalf("player = %d, want 90", got)
	}
	if got := h.reserveBalance(t); got != 110 {
		t.Fatalf("reserve = %d, want 110", got)
	}
}

func TestPause(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "p", Player: player, Stake: 10, Choice: game.ChoiceSideA}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := h.e.TogglePause(h.ctx, player); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("player toggled pause: %v", err)
	}
	r, err := h.e.TogglePause(h.ctx, operator)
	if err != nil || !r.Paused {
		t.Fatalf("pause: %+v %v", r, err)
	}

	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "q", Player: player, Stake: 10, Choice: game.ChoiceSideA}); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("open while paused: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "p", player, commitment(1)); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("commit while paused: %v", err)
	}
	if _, err := h.e.Deposit(h.ctx, player, 1); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("deposit while paused: %v", err)
	}
	if _, err := h.e.Withdraw(h.ctx, operator, 1); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("withdraw while paused: %v", err)
	}
	if _, err := h.e.AdjustAccount(h.ctx, AdjustInput{AccountID: player, Amount: 1}); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("adjust while paused: %v", err)
	}
	if _, err := h.e.GetReserve(h.ctx); err != nil {
		t.Fatalf("query while paused: %v", err)
	}

	r, err = h.e.TogglePause(h.ctx, operator)
	if err != nil || r.Paused {
		t.Fatalf("unpause: %+v %v", r, err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "p", player, commitment(1)); err != nil {
		t.Fatalf("commit after unpause: %v", err)
	}
	if err := h.oracle.Fulfill(h.ctx, commitment(1), valueForBucket(0)); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	// 随机数已就绪，暂停期间开奖与退款同样被拒绝且不改动任何状态
	if _, err := h.e.TogglePause(h.ctx, operator); err != nil {
		t.Fatalf("pause again: %v", err)
	}
	reserveBefore, balanceBefore := h.reserveBalance(t), h.balance(t, player)
	if _, err := h.e.ResolveOutcome(h.ctx, "p"); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("resolve while paused: %v", err)
	}
	h.clock.Advance(time.Hour)
	if _, err := h.e.RefundWager(h.ctx, "p", player); !errors.Is(err, ErrProgramPaused) {
		t.Fatalf("refund while paused: %v", err)
	}
	if got := h.reserveBalance(t); got != reserveBefore {
		t.Fatalf("reserve changed while paused: %d -> %d", reserveBefore, got)
	}
	if got := h.balance(t, player); got != balanceBefore {
		t.Fatalf("player changed while paused: %d -> %d", balanceBefore, got)
	}
	w, err := h.e.GetWager(h.ctx, "p")
	if err != nil || w.Status != state.StatusProcessing || w.Refunded || w.Payout != 0 {
		t.Fatalf("wager changed while paused: %+v %v", w, err)
	}
	if n := h.outboxCount(t, "wager_settled") + h.outboxCount(t, "wager_refunded"); n != 0 {
		t.Fatalf("settlement events while paused = %d", n)
	}

	if _, err := h.e.TogglePause(h.ctx, operator); err != nil {
		t.Fatalf("unpause again: %v", err)
	}
	if w, err = h.e.ResolveOutcome(h.ctx, "p"); err != nil || w.Status != state.StatusFinished {
		t.Fatalf("resolve after unpause: %+v %v", w, err)
	}
	if n := h.outboxCount(t, "reserve_paused"); n != 4 {
		t.Fatalf("reserve_paused events = %d", n)
	}
}

func TestTreasury(t *testing.T) {
	h := newHarness(t)
	if _, err := h.e.Deposit(h.ctx, operator, 1); !errors.Is(err, ErrReserveNotFound) {
		t.Fatalf("deposit before init: %v", err)
	}
	h.setup(t, 100, 30)

	if _, err := h.e.InitializeReserve(h.ctx, player); !errors.Is(err, ErrReserveExists) {
		t.Fatalf("second init: %v", err)
	}
	if _, err := h.e.Deposit(h.ctx, player, 0); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero deposit: %v", err)
	}
	// 任何账户都可以注资
	r, err := h.e.Deposit(h.ctx, player, 30)
	if err != nil || r.Balance != 130 {
		t.Fatalf("player deposit: %+v %v", r, err)
	}
	if _, err := h.e.Deposit(h.ctx, player, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("deposit beyond balance: %v", err)
	}

	if _, err := h.e.Withdraw(h.ctx, player, 10); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("player withdraw: %v", err)
	}
	if _, err := h.e.Withdraw(h.ctx, operator, 131); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("over withdraw: %v", err)
	}
	r, err = h.e.Withdraw(h.ctx, operator, 130)
	if err != nil || r.Balance != 0 {
		t.Fatalf("withdraw: %+v %v", r, err)
	}
	if got := h.balance(t, operator); got != 130 {
		t.Fatalf("operator balance = %d", got)
	}
}

func TestRefundWager(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "stuck", Player: player, Stake: 10, Choice: game.ChoiceTie}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := h.e.RequestOutcome(h.ctx, "stuck", player, commitment(2)); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := h.e.RefundWager(h.ctx, "stuck", player); !errors.Is(err, ErrRefundNotDue) {
		t.Fatalf("early refund: %v", err)
	}

	h.clock.Advance(time.Hour)
	stale, err := h.e.StaleWagers(h.ctx, 10)
	if err != nil || len(stale) != 1 {
		t.Fatalf("stale wagers: %v %v", stale, err)
	}
	if _, err := h.e.RefundWager(h.ctx, "stuck", "mallory"); !errors.Is(err, ErrNotPlayer) {
		t.Fatalf("stranger refund: %v", err)
	}
	w, err := h.e.RefundWager(h.ctx, "stuck", operator)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !w.Refunded || w.Status != state.StatusFinished || w.Payout != 10 || w.Outcome != 0 {
		t.Fatalf("refunded wager: %+v", w)
	}
	if got := h.balance(t, player); got != 100 {
		t.Fatalf("player after refund = %d", got)
	}
	if got := h.reserveBalance(t); got != 100 {
		t.Fatalf("reserve after refund = %d", got)
	}
	if _, err := h.e.ResolveOutcome(h.ctx, "stuck"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("resolve after refund: %v", err)
	}
	if _, err := h.e.RefundWager(h.ctx, "stuck", player); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("double refund: %v", err)
	}
	if n := h.outboxCount(t, "wager_refunded"); n != 1 {
		t.Fatalf("wager_refunded events = %d", n)
	}
}

func TestPendingSettlements(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 100, 100)

	if _, err := h.e.OpenWagerAndRequest(h.ctx, OpenWagerInput{RoomID: "x", Player: player, Stake: 10, Choice: game.ChoiceSideA}, commitment(1)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := h.e.OpenWager(h.ctx, OpenWagerInput{RoomID: "y", Player: player, Stake: 10, Choice: game.ChoiceSideA}); err != nil {
		t.Fatalf("open: %v", err)
	}
	list, err := h.e.PendingSettlements(h.ctx, 10)
	if err != nil || len(list) != 1 || list[0].RoomID != "x" {
		t.Fatalf("pending settlements: %+v %v", list, err)
	}
}

func TestAdjustAccount(t *testing.T) {
	h := newHarness(t)
	// 资金池未初始化时也可调整
	h.credit(t, player, 50)
	if _, err := h.e.AdjustAccount(h.ctx, AdjustInput{AccountID: player, Amount: 51, Debit: true}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("over debit: %v", err)
	}
	acc, err := h.e.AdjustAccount(h.ctx, AdjustInput{AccountID: player, Amount: 20, Debit: true, Remark: "chargeback"})
	if err != nil || acc.Balance != 30 {
		t.Fatalf("debit: %+v %v", acc, err)
	}
	if _, err := h.e.AdjustAccount(h.ctx, AdjustInput{AccountID: model.HouseAccountID, Amount: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("house account adjust: %v", err)
	}

	view, err := h.e.GetAccount(h.ctx, player, 10)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if len(view.Ledger) != 2 || view.Ledger[0].Remark != "chargeback" || view.Ledger[0].AfterAmount != 30 {
		t.Fatalf("ledger: %+v", view.Ledger)
	}
	if _, err := h.e.GetAccount(h.ctx, "ghost", 10); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("missing account: %v", err)
	}
}

func TestBalanceCeiling(t *testing.T) {
	h := newHarness(t)
	h.setup(t, 0, 0)

	// SQLite 余额列上限为 MaxInt64
	h.credit(t, player, math.MaxInt64)
	if _, err := h.e.AdjustAccount(h.ctx, AdjustInput{AccountID: player, Amount: 1}); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("credit past ceiling: %v", err)
	}
	if got := h.balance(t, player); got != math.MaxInt64 {
		t.Fatalf("player = %d after rejected credit", got)
	}

	if _, err := h.e.Deposit(h.ctx, player, math.MaxInt64); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.credit(t, player, 1)
	if _, err := h.e.Deposit(h.ctx, player, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("deposit past ceiling: %v", err)
	}
	if got := h.reserveBalance(t); got != math.MaxInt64 {
		t.Fatalf("reserve = %d after rejected deposit", got)
	}
	if got := h.balance(t, player); got != 1 {
		t.Fatalf("player = %d after rejected deposit", got)
	}
	view, err := h.e.GetAccount(h.ctx, player, 10)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	// 两次成功加款 + 一次注资
	if len(view.Ledger) != 3 {
		t.Fatalf("ledger rows = %d, want 3", len(view.Ledger))
	}
	if n := h.outboxCount(t, "reserve_deposit"); n != 1 {
		t.Fatalf("reserve_deposit events = %d", n)
	}
}
