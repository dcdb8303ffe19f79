package api

import (
	"errors"
	"net/http"

	"coinflip-server/common/logger"
	"coinflip-server/internal/common/response"
	"coinflip-server/internal/service"

	"go.uber.org/zap"
)

// errClass 服务层错误对应的 HTTP 状态、业务码与提示
type errClass struct {
	status     int
	code       int
	message    string // 为空时使用业务码的默认文案
	retryAfter int    // >0 时以 202 返回并带 Retry-After
}

// classify 按错误类型映射响应；子错误须排在其父错误之前
func classify(err error) errClass {
	switch {
	case errors.Is(err, service.ErrDuplicateInFlight):
		return errClass{status: http.StatusAccepted, code: response.CodeDuplicateInFlight, retryAfter: 1}
	case errors.Is(err, service.ErrStillProcessing):
		return errClass{status: http.StatusAccepted, code: response.CodeStillProcessing, retryAfter: 1}

	case errors.Is(err, service.ErrInvalidAmount):
		return errClass{status: http.StatusBadRequest, code: response.CodeInvalidAmount, message: err.Error()}
	case errors.Is(err, service.ErrInvalidInput):
		return errClass{status: http.StatusBadRequest, code: response.CodeInvalidInput, message: err.Error()}

	case errors.Is(err, service.ErrNotOperator):
		return errClass{status: http.StatusForbidden, code: response.CodeNotOperator}
	case errors.Is(err, service.ErrNotPlayer):
		return errClass{status: http.StatusForbidden, code: response.CodeNotPlayer}

	case errors.Is(err, service.ErrReserveNotFound):
		return errClass{status: http.StatusNotFound, code: response.CodeNotFound, message: "资金池未初始化"}
	case errors.Is(err, service.ErrWagerNotFound):
		return errClass{status: http.StatusNotFound, code: response.CodeNotFound, message: "注单不存在"}
	case errors.Is(err, service.ErrAccountNotFound):
		return errClass{status: http.StatusNotFound, code: response.CodeNotFound, message: "账户不存在"}

	case errors.Is(err, service.ErrRateLimited):
		return errClass{status: http.StatusTooManyRequests, code: response.CodeRateLimited}
	case errors.Is(err, service.ErrProgramPaused):
		return errClass{status: http.StatusConflict, code: response.CodeProgramPaused}
	case errors.Is(err, service.ErrInsufficientBalance):
		return errClass{status: http.StatusConflict, code: response.CodeInsufficientBalance}
	case errors.Is(err, service.ErrInsufficientFunds):
		return errClass{status: http.StatusConflict, code: response.CodeInsufficientFunds}
	case errors.Is(err, service.ErrArithmeticOverflow):
		return errClass{status: http.StatusConflict, code: response.CodeArithmeticOverflow}
	case errors.Is(err, service.ErrReserveExists):
		return errClass{status: http.StatusConflict, code: response.CodeReserveExists}
	case errors.Is(err, service.ErrRefundNotDue):
		return errClass{status: http.StatusConflict, code: response.CodeRefundNotDue}
	case errors.Is(err, service.ErrInvalidState):
		return errClass{status: http.StatusConflict, code: response.CodeInvalidState, message: err.Error()}
	}
	return errClass{status: http.StatusInternalServerError, code: response.CodeSystemError}
}

// fail 统一输出服务层错误；未识别的错误记日志并返回 500
func (c *baseController) fail(err error) {
	traceID := c.traceID()
	ec := classify(err)
	switch {
	case ec.retryAfter > 0:
		response.Accepted(&c.Controller, ec.code, ec.retryAfter, traceID)
	case ec.status == http.StatusInternalServerError:
		logger.Error("request failed",
			zap.String("trace_id", traceID),
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.Error(err))
		response.InternalError(&c.Controller, traceID)
	case ec.status == http.StatusNotFound:
		response.NotFound(&c.Controller, ec.message, traceID)
	case ec.message != "":
		response.ErrorWithMessage(&c.Controller, ec.status, ec.code, ec.message, traceID)
	case ec.status == http.StatusConflict:
		response.Conflict(&c.Controller, ec.code, traceID)
	default:
		response.Error(&c.Controller, ec.status, ec.code, traceID)
	}
}
