package middleware

import (
	"errors"
	"net/http"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/auth"
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// UserAuthFilter 用户认证过滤器（JWT Token）
// 验证通过后将 account_id 写入 ctx.Input 数据，供控制器读取调用方身份
func UserAuthFilter(ctx *beegocontext.Context) {
	traceID := helper.GetTraceID(ctx)

	returnError := func(bizCode int, message string) {
		ctx.Output.SetStatus(http.StatusUnauthorized)
		_ = ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	token, err := auth.BearerToken(ctx.Input.Header("Authorization"))
	if err == nil {
		var claims *auth.JWTClaims
		claims, err = auth.VerifyJWTToken(ctx.Request.Context(), token)
		if err == nil {
			ctx.Input.SetData("account_id", claims.AccountID)
			ctx.Input.SetData("jwt_claims", claims)
			return
		}
	}

	logger.Warn("user authentication failed",
		zap.String("trace_id", traceID),
		zap.String("path", ctx.Request.URL.Path),
		zap.Error(err))

	// 根据错误类型返回不同的错误码
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		returnError(response.CodeUnauthorized, "缺少认证Token")
	case errors.Is(err, auth.ErrInvalidTokenFormat):
		returnError(response.CodeInvalidToken, "Token格式无效")
	case errors.Is(err, auth.ErrTokenExpired):
		returnError(response.CodeTokenExpired, "Token已过期")
	case errors.Is(err, auth.ErrTokenRevoked):
		returnError(response.CodeTokenRevoked, "Token已撤销")
	case errors.Is(err, auth.ErrInvalidToken):
		returnError(response.CodeInvalidToken, "Token无效")
	default:
		returnError(response.CodeUnauthorized, "认证失败")
	}
}
