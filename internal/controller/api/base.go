package api

import (
	"context"
	"fmt"

	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// 控制器依赖的服务，由 Bind 在启动时注入
var (
	treasurySvc service.TreasuryService
	wagerSvc    service.WagerService
	accountSvc  service.AccountService
)

// Bind 注入服务实现（main 中调用，需在路由注册之前）
func Bind(treasury service.TreasuryService, wagers service.WagerService, accounts service.AccountService) {
	treasurySvc = treasury
	wagerSvc = wagers
	accountSvc = accounts
}

// baseController 公共方法：trace_id、请求上下文、调用方账户
type baseController struct{ beego.Controller }

func (c *baseController) traceID() string { return helper.GetTraceID(c.Ctx) }

func (c *baseController) reqCtx() context.Context { return c.Ctx.Request.Context() }

// caller 由 UserAuthFilter 写入的账户ID；未认证时为空
func (c *baseController) caller() string {
	if v := c.Ctx.Input.GetData("account_id"); v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func (c *baseController) roomID() string { return c.Ctx.Input.Param(":room_id") }
