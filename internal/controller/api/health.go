package api

import (
	"context"
	"net/http"
	"time"

	"coinflip-server/common/logger"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// ReadinessCheck 单项依赖探测（MySQL/Redis 等）
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

var readiness []ReadinessCheck

// SetReadinessChecks 注册就绪探针依赖项
func SetReadinessChecks(checks ...ReadinessCheck) { readiness = checks }

// HealthController 提供健康检查端点：/healthz 与 /readyz
type HealthController struct{ beego.Controller }

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(http.StatusOK)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：任一依赖不可达返回 503
func (c *HealthController) Readyz() {
	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 2*time.Second)
	defer cancel()
	for _, rc := range readiness {
		if err := rc.Check(ctx); err != nil {
			logger.Warn("readiness check failed", zap.String("dependency", rc.Name), zap.Error(err))
			c.Ctx.Output.SetStatus(http.StatusServiceUnavailable)
			_ = c.Ctx.Output.Body([]byte(rc.Name + " unavailable"))
			return
		}
	}
	c.Ctx.Output.SetStatus(http.StatusOK)
	_ = c.Ctx.Output.Body([]byte("ready"))
}
