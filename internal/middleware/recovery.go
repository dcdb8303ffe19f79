package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"

	"github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// RecoverPanic 作为 web.BConfig.RecoverFunc 注册，由路由器 defer 调用
// 捕获所有未处理的 panic，防止进程崩溃
func RecoverPanic(ctx *beegocontext.Context, _ *web.Config) {
	err := recover()
	if err == nil {
		return
	}
	if err == web.ErrAbort {
		return
	}
	traceID := helper.GetTraceID(ctx)

	// 记录 panic 信息和堆栈
	logger.Error("panic recovered",
		zap.String("trace_id", traceID),
		zap.String("method", ctx.Request.Method),
		zap.String("path", ctx.Request.URL.Path),
		zap.Any("error", err),
		zap.String("stack", string(debug.Stack())))

	if ctx.ResponseWriter.Started {
		return
	}
	ctx.Output.SetStatus(http.StatusInternalServerError)
	_ = ctx.Output.JSON(response.APIResponse{
		Code:      response.CodeSystemError,
		Message:   "系统繁忙，请稍后重试",
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}, false, false)
}
