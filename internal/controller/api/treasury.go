package api

import (
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"
)

// TreasuryController 资金池接口：/api/reserve*
type TreasuryController struct{ baseController }

// Get GET /api/reserve
func (c *TreasuryController) Get() {
	r, err := treasurySvc.GetReserve(c.reqCtx())
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toReserveView(r), c.traceID())
}

// Deposit POST /api/reserve/deposit
func (c *TreasuryController) Deposit() {
	amount, ok, msg := helper.ParseAmount(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	r, err := treasurySvc.Deposit(c.reqCtx(), c.caller(), amount)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toReserveView(r), c.traceID())
}

// Withdraw POST /api/reserve/withdraw 仅管理员
func (c *TreasuryController) Withdraw() {
	amount, ok, msg := helper.ParseAmount(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	r, err := treasurySvc.Withdraw(c.reqCtx(), c.caller(), amount)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toReserveView(r), c.traceID())
}

// Pause POST /api/reserve/pause 切换暂停开关
func (c *TreasuryController) Pause() {
	r, err := treasurySvc.TogglePause(c.reqCtx(), c.caller())
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toReserveView(r), c.traceID())
}
