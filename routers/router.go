package routers

import (
	"coinflip-server/internal/config"
	"coinflip-server/internal/controller/api"
	"coinflip-server/internal/metrics"
	"coinflip-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// 需要玩家 JWT 的接口
var userRoutes = []string{
	"/api/reserve/deposit",
	"/api/reserve/withdraw",
	"/api/reserve/pause",
	"/api/wagers",
	"/api/wagers/:room_id/commit",
	"/api/wagers/:room_id/resolve",
	"/api/wagers/:room_id/refund",
	"/api/accounts/me",
	"/api/auth/logout",
}

// Register 注册HTTP路由与全局过滤器；需在配置加载、服务注入之后调用
func Register() {
	cfg := config.Get()

	// Panic Recovery 由路由器 defer 调用
	beego.BConfig.RecoverPanic = true
	beego.BConfig.RecoverFunc = middleware.RecoverPanic
	beego.BConfig.CopyRequestBody = true

	// 全局过滤器（按执行顺序）
	// 1. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 2. CORS 处理（预检请求在路由前返回）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeRouter, middleware.CORSFilter)
	}

	// 3. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter, beego.WithReturnOnOutput(false))

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 玩家 API（JWT 认证 + 限流） ==========
	for _, p := range userRoutes {
		beego.InsertFilter(p, beego.BeforeExec, middleware.UserAuthFilter)
		if cfg != nil && cfg.RateLimit.Enabled {
			beego.InsertFilter(p, beego.BeforeExec, middleware.RateLimitFilter)
		}
	}

	// 资金池
	beego.Router("/api/reserve", &api.TreasuryController{}, "get:Get")
	beego.Router("/api/reserve/deposit", &api.TreasuryController{}, "post:Deposit")
	beego.Router("/api/reserve/withdraw", &api.TreasuryController{}, "post:Withdraw")
	beego.Router("/api/reserve/pause", &api.TreasuryController{}, "post:Pause")

	// 注单
	beego.Router("/api/wagers", &api.WagerController{}, "post:Open")
	beego.Router("/api/wagers/:room_id", &api.WagerController{}, "get:Get")
	beego.Router("/api/wagers/:room_id/commit", &api.WagerController{}, "post:Commit")
	beego.Router("/api/wagers/:room_id/resolve", &api.WagerController{}, "post:Resolve")
	beego.Router("/api/wagers/:room_id/refund", &api.WagerController{}, "post:Refund")

	// 账户
	beego.Router("/api/accounts/me", &api.AccountController{}, "get:Me")
	beego.Router("/api/auth/logout", &api.SessionController{}, "post:Logout")

	// ========== 管理 API（管理员 Token） ==========
	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	beego.Router("/api/admin/reserve/init", &api.AdminController{}, "post:InitReserve")
	beego.Router("/api/admin/accounts/adjust", &api.AdminController{}, "post:Adjust")
	beego.Router("/api/admin/token", &api.AdminController{}, "post:Token")
}
