package api

import (
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"
	"coinflip-server/internal/config"
	"coinflip-server/internal/model"
	"coinflip-server/internal/service"
)

// 关闭后开局与请求随机数必须分两步调用
const flagDisableFusedOpen = "disable_fused_open"

// WagerController 注单接口：/api/wagers*
type WagerController struct{ baseController }

// Open POST /api/wagers
// request_outcome=true 时需同时传入 commitment，开局与请求随机数在同一事务内完成
func (c *WagerController) Open() {
	req, ok, msg := helper.ParseAndValidateOpenWager(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	if req.Commitment != nil && config.GetFeatureFlag(flagDisableFusedOpen) {
		response.BadRequest(&c.Controller, "open with commitment is disabled, call /commit after opening", c.traceID())
		return
	}
	in := service.OpenWagerInput{
		RoomID: req.RoomID,
		Player: c.caller(),
		Stake:  req.Stake,
		Choice: req.Choice,
	}

	var (
		w   *model.Wager
		err error
	)
	if req.Commitment != nil {
		w, err = wagerSvc.OpenWagerAndRequest(c.reqCtx(), in, *req.Commitment)
	} else {
		w, err = wagerSvc.OpenWager(c.reqCtx(), in)
	}
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toWagerView(w), c.traceID())
}

// Get GET /api/wagers/:room_id
func (c *WagerController) Get() {
	w, err := wagerSvc.GetWager(c.reqCtx(), c.roomID())
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toWagerView(w), c.traceID())
}

// Commit POST /api/wagers/:room_id/commit
func (c *WagerController) Commit() {
	commitment, ok, msg := helper.ParseCommitment(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	w, err := wagerSvc.RequestOutcome(c.reqCtx(), c.roomID(), c.caller(), commitment)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toWagerView(w), c.traceID())
}

// Resolve POST /api/wagers/:room_id/resolve
// 随机数未就绪时返回 202，客户端按 Retry-After 轮询
func (c *WagerController) Resolve() {
	w, err := wagerSvc.ResolveOutcome(c.reqCtx(), c.roomID())
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toWagerView(w), c.traceID())
}

// Refund POST /api/wagers/:room_id/refund
func (c *WagerController) Refund() {
	w, err := wagerSvc.RefundWager(c.reqCtx(), c.roomID(), c.caller())
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toWagerView(w), c.traceID())
}
