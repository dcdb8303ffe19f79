package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/auth"
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"
	"coinflip-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// AdminAuthFilter 管理员认证过滤器（静态 Token）
// 用于保护 /admin 接口（调账、签发测试 Token）
func AdminAuthFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	traceID := helper.GetTraceID(ctx)

	// 如果未启用管理员认证，跳过（仅用于本地开发）
	if cfg == nil || !cfg.Auth.Admin.Enabled {
		logger.Debug("admin auth disabled, skip", zap.String("trace_id", traceID))
		ctx.Input.SetData("is_admin", true)
		return
	}

	returnAuthError := func(message string) {
		ctx.Output.SetStatus(http.StatusUnauthorized)
		_ = ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeUnauthorized,
			Message:   message,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	token, err := auth.BearerToken(ctx.Input.Header("Authorization"))
	if err != nil {
		logger.Warn("admin token rejected", zap.String("trace_id", traceID), zap.Error(err))
		returnAuthError("缺少管理员认证信息")
		return
	}

	want := cfg.Auth.Admin.Token
	if want == "" || subtle.ConstantTimeCompare([]byte(token), []byte(want)) != 1 {
		logger.Warn("invalid admin token",
			zap.String("trace_id", traceID),
			zap.String("token_prefix", token[:min(len(token), 8)]+"..."))
		returnAuthError("无效的管理员Token")
		return
	}

	// 标记为管理员请求
	ctx.Input.SetData("is_admin", true)
}
