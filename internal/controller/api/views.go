package api

import (
	chelper "coinflip-server/common/helper"
	"coinflip-server/internal/game"
	"coinflip-server/internal/model"
	"coinflip-server/internal/service"
	"coinflip-server/internal/state"
)

// 响应中的金额同时给出 lamports 与 SOL 字符串

type reserveView struct {
	Operator   string `json:"operator"`
	Balance    uint64 `json:"balance"`
	BalanceSOL string `json:"balance_sol"`
	Paused     bool   `json:"paused"`
	UpdatedAt  int64  `json:"updated_at"`
}

func toReserveView(r *model.HouseReserve) reserveView {
	return reserveView{
		Operator:   r.Operator,
		Balance:    r.Balance,
		BalanceSOL: chelper.FormatSOL(r.Balance),
		Paused:     r.Paused,
		UpdatedAt:  r.UpdatedAt,
	}
}

type wagerView struct {
	RoomID       string `json:"room_id"`
	RoundNo      uint32 `json:"round_no"`
	Player       string `json:"player"`
	Stake        uint64 `json:"stake"`
	StakeSOL     string `json:"stake_sol"`
	Choice       string `json:"choice"`
	Status       string `json:"status"`
	Outcome      string `json:"outcome"`
	Commitment   string `json:"commitment,omitempty"`
	Payout       uint64 `json:"payout"`
	PayoutSOL    string `json:"payout_sol"`
	Refunded     bool   `json:"refunded"`
	LastPlayTime int64  `json:"last_play_time"`
	UpdatedAt    int64  `json:"updated_at"`
}

func toWagerView(w *model.Wager) wagerView {
	return wagerView{
		RoomID:       w.RoomID,
		RoundNo:      w.RoundNo,
		Player:       w.Player,
		Stake:        w.Stake,
		StakeSOL:     chelper.FormatSOL(w.Stake),
		Choice:       game.Choice(w.Choice).String(),
		Status:       state.Name(w.Status),
		Outcome:      game.Outcome(w.Outcome).String(),
		Commitment:   w.Commitment,
		Payout:       w.Payout,
		PayoutSOL:    chelper.FormatSOL(w.Payout),
		Refunded:     w.Refunded,
		LastPlayTime: w.LastPlayTime,
		UpdatedAt:    w.UpdatedAt,
	}
}

type ledgerView struct {
	BizType   string `json:"biz_type"`
	Amount    uint64 `json:"amount"`
	Before    uint64 `json:"before_amount"`
	After     uint64 `json:"after_amount"`
	RoomID    string `json:"room_id,omitempty"`
	RoundNo   uint32 `json:"round_no,omitempty"`
	Remark    string `json:"remark,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type accountView struct {
	AccountID  string       `json:"account_id"`
	Balance    uint64       `json:"balance"`
	BalanceSOL string       `json:"balance_sol"`
	Ledger     []ledgerView `json:"ledger,omitempty"`
}

func toAccountView(a *model.Account) accountView {
	return accountView{AccountID: a.AccountID, Balance: a.Balance, BalanceSOL: chelper.FormatSOL(a.Balance)}
}

func toAccountDetail(v *service.AccountView) accountView {
	out := toAccountView(v.Account)
	for _, l := range v.Ledger {
		out.Ledger = append(out.Ledger, ledgerView{
			BizType:   l.BizTypeStr,
			Amount:    l.Amount,
			Before:    l.BeforeAmount,
			After:     l.AfterAmount,
			RoomID:    l.RoomID,
			RoundNo:   l.RoundNo,
			Remark:    l.Remark,
			CreatedAt: l.CreatedAt,
		})
	}
	return out
}
