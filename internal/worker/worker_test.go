package worker

import (
	"context"
	"errors"
	"testing"

	infmysql "coinflip-server/internal/infra/mysql"
	"coinflip-server/internal/model"
	"coinflip-server/internal/randomness"
	"coinflip-server/internal/service"
)

func TestFulfillOne(t *testing.T) {
	ctx := context.Background()
	m := randomness.NewMemory()
	seed := []byte("seed")

	if ok, err := fulfillOne(ctx, m, seed); ok || err != nil {
		t.Fatalf("empty queue: %v %v", ok, err)
	}

	c := [32]byte{0xaa}
	if err := m.Request(ctx, c); err != nil {
		t.Fatalf("request: %v", err)
	}
	if ok, err := fulfillOne(ctx, m, seed); !ok || err != nil {
		t.Fatalf("fulfill: %v %v", ok, err)
	}
	v, err := m.CurrentValue(ctx, c)
	if err != nil {
		t.Fatalf("current value: %v", err)
	}
	if v != randomness.Derive(seed, c) {
		t.Fatalf("stored value is not HMAC of commitment")
	}
}

type fakeSettler struct {
	pending []model.Wager
	errs    map[string]error
	calls   []string
}

func (f *fakeSettler) PendingSettlements(context.Context, uint) ([]model.Wager, error) {
	return f.pending, nil
}

func (f *fakeSettler) ResolveOutcome(_ context.Context, roomID string) (*model.Wager, error) {
	f.calls = append(f.calls, roomID)
	if err := f.errs[roomID]; err != nil {
		return nil, err
	}
	return &model.Wager{RoomID: roomID}, nil
}

func TestSettlePending(t *testing.T) {
	f := &fakeSettler{
		pending: []model.Wager{{RoomID: "a"}, {RoomID: "b"}, {RoomID: "c"}},
		errs: map[string]error{
			"b": service.ErrStillProcessing,
			"c": errors.New("boom"),
		},
	}
	if n := settlePending(context.Background(), f); n != 1 {
		t.Fatalf("settled = %d, want 1", n)
	}
	if len(f.calls) != 3 {
		t.Fatalf("calls = %v", f.calls)
	}
}

type fakeRefunder struct {
	stale  []model.Wager
	caller []string
}

func (f *fakeRefunder) GetReserve(context.Context) (*model.HouseReserve, error) {
	return &model.HouseReserve{Operator: "op"}, nil
}

func (f *fakeRefunder) StaleWagers(context.Context, uint) ([]model.Wager, error) { return f.stale, nil }

func (f *fakeRefunder) RefundWager(_ context.Context, roomID, caller string) (*model.Wager, error) {
	f.caller = append(f.caller, caller)
	return &model.Wager{RoomID: roomID, Refunded: true}, nil
}

func TestRefundStaleActsAsOperator(t *testing.T) {
	f := &fakeRefunder{stale: []model.Wager{{RoomID: "x"}, {RoomID: "y"}}}
	if n := refundStale(context.Background(), f); n != 2 {
		t.Fatalf("refunded = %d", n)
	}
	for _, c := range f.caller {
		if c != "op" {
			t.Fatalf("refund caller = %q, want operator", c)
		}
	}
}

type fakePublisher struct {
	fail map[string]bool
	sent []string
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, _ []byte) error {
	if p.fail[topic] {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func TestDispatchOutbox(t *testing.T) {
	ctx := context.Background()
	db, err := infmysql.Open(ctx, infmysql.Options{Driver: infmysql.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := model.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, topic := range []string{"wager_opened", "wager_settled"} {
		if err := model.CreateOutbox(ctx, db, topic, "room#1", map[string]any{"event": topic}); err != nil {
			t.Fatalf("create outbox: %v", err)
		}
	}

	pub := &fakePublisher{fail: map[string]bool{"wager_settled": true}}
	if n := dispatchOutbox(ctx, db, pub, 10); n != 1 {
		t.Fatalf("sent = %d, want 1", n)
	}
	if len(pub.sent) != 1 || pub.sent[0] != "wager_opened/room#1" {
		t.Fatalf("published = %v", pub.sent)
	}

	// 失败的消息保持 pending 并在下一轮重试
	rows, err := model.ListOutboxPending(ctx, db, 10)
	if err != nil || len(rows) != 1 || rows[0].Topic != "wager_settled" {
		t.Fatalf("pending rows = %+v %v", rows, err)
	}
	pub.fail = nil
	if n := dispatchOutbox(ctx, db, pub, 10); n != 1 {
		t.Fatalf("retry sent = %d", n)
	}
	if rows, _ := model.ListOutboxPending(ctx, db, 10); len(rows) != 0 {
		t.Fatalf("still pending: %+v", rows)
	}
}
