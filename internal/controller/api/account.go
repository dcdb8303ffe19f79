package api

import (
	"strconv"

	"coinflip-server/internal/auth"
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"
	"coinflip-server/internal/service"
)

const (
	defaultLedgerLimit = 20
	maxLedgerLimit     = 100
)

// AccountController 账户查询：GET /api/accounts/me
type AccountController struct{ baseController }

func (c *AccountController) Me() {
	limit := defaultLedgerLimit
	if s := c.Ctx.Input.Query("ledger_limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			response.BadRequest(&c.Controller, "ledger_limit must be a non-negative integer", c.traceID())
			return
		}
		limit = min(n, maxLedgerLimit)
	}
	view, err := accountSvc.GetAccount(c.reqCtx(), c.caller(), limit)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toAccountDetail(view), c.traceID())
}

// AdminController 管理接口：/api/admin/*（AdminAuthFilter 保护）
type AdminController struct{ baseController }

// Adjust POST /api/admin/accounts/adjust 给托管账户加/减款
func (c *AdminController) Adjust() {
	in, ok, msg := helper.ParseAndValidateAdjust(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	acc, err := accountSvc.AdjustAccount(c.reqCtx(), service.AdjustInput{
		AccountID: in.AccountID,
		Amount:    in.Amount,
		Debit:     in.Debit,
		Remark:    in.Remark,
	})
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toAccountView(acc), c.traceID())
}

// InitReserve POST /api/admin/reserve/init 创建资金池，body 中的 account_id 成为管理员
func (c *AdminController) InitReserve() {
	operator, ok, msg := helper.ParseAccountID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	r, err := treasurySvc.InitializeReserve(c.reqCtx(), operator)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, toReserveView(r), c.traceID())
}

// Token POST /api/admin/token 为指定账户签发访问 Token（联调用）
func (c *AdminController) Token() {
	accountID, ok, msg := helper.ParseAccountID(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, c.traceID())
		return
	}
	token, exp, err := auth.GenerateAccessToken(accountID)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(&c.Controller, map[string]any{
		"account_id":   accountID,
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   exp.Unix(),
	}, c.traceID())
}
