package middleware

import (
	"coinflip-server/common/logger"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/google/uuid"
)

// RequestIDFilter 为每个请求注入并返回一个 X-Request-Id，用于链路追踪的最小闭环
// 同时写入 request context，服务层日志据此带上 trace_id
func RequestIDFilter(ctx *context.Context) {
	id := ctx.Input.Header("X-Request-Id")
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Input.SetData("trace_id", id)
	ctx.Output.Header("X-Request-Id", id)
	ctx.Request = ctx.Request.WithContext(logger.WithTraceID(ctx.Request.Context(), id))
}
