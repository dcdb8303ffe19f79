package response

import (
	"strconv"
	"time"

	beego "github.com/beego/beego/v2/server/web"
)

// APIResponse 统一 API 响应结构
// 所有 API 都应该返回这个结构，无论成功还是失败
type APIResponse struct {
	Code      int         `json:"code"`                // 业务错误码：0=成功，非0=失败
	Message   string      `json:"message"`             // 错误消息
	Data      interface{} `json:"data,omitempty"`      // 业务数据（失败时为 null）
	TraceID   string      `json:"trace_id,omitempty"`  // 请求追踪ID
	Timestamp int64       `json:"timestamp,omitempty"` // 响应时间戳（Unix 毫秒）
}

// 错误码定义
const (
	CodeSuccess             = 0    // 成功
	CodeBadRequest          = 1000 // 参数错误
	CodeInvalidAmount       = 1001 // 金额不合法
	CodeInvalidInput        = 1002 // 输入不合法
	CodeBusinessError       = 2000 // 业务错误（通用）
	CodeDuplicateInFlight   = 2001 // 重复请求进行中
	CodeStillProcessing     = 2002 // 随机数未就绪
	CodeInvalidState        = 2003 // 状态不允许
	CodeProgramPaused       = 2004 // 已暂停
	CodeRateLimited         = 2005 // 房间冷却中
	CodeRefundNotDue        = 2006 // 未到退款时间
	CodeInsufficientBalance = 2007 // 账户余额不足
	CodeInsufficientFunds   = 2008 // 资金池余额不足
	CodeArithmeticOverflow  = 2009 // 数值溢出
	CodeReserveExists       = 2010 // 资金池已初始化
	CodeUnauthorized        = 3000 // 未授权
	CodeInvalidToken        = 3001 // Token 无效
	CodeTokenExpired        = 3002 // Token 过期
	CodeTokenRevoked        = 3003 // Token 已撤销
	CodeForbidden           = 3009 // 禁止访问
	CodeNotOperator         = 3011 // 非管理员
	CodeNotPlayer           = 3012 // 非注单玩家
	CodeRateLimitExceeded   = 4000 // 请求频率超限
	CodeNotFound            = 4004 // 资源不存在
	CodeSystemError         = 5000 // 系统错误
)

// ErrorMessages 错误消息映射
var ErrorMessages = map[int]string{
	CodeSuccess:             "success",
	CodeBadRequest:          "参数错误",
	CodeInvalidAmount:       "金额不合法",
	CodeInvalidInput:        "输入不合法",
	CodeBusinessError:       "业务处理失败",
	CodeDuplicateInFlight:   "重复请求进行中，请稍后重试",
	CodeStillProcessing:     "随机数尚未生成，请稍后重试",
	CodeInvalidState:        "当前状态不允许此操作",
	CodeProgramPaused:       "服务已暂停",
	CodeRateLimited:         "房间冷却中，请稍后再试",
	CodeRefundNotDue:        "尚未到达退款时间",
	CodeInsufficientBalance: "余额不足",
	CodeInsufficientFunds:   "资金池余额不足",
	CodeArithmeticOverflow:  "金额溢出",
	CodeReserveExists:       "资金池已初始化",
	CodeNotOperator:         "仅管理员可操作",
	CodeNotPlayer:           "仅注单玩家可操作",
	CodeUnauthorized:        "未授权",
	CodeInvalidToken:        "Token无效",
	CodeTokenExpired:        "Token已过期",
	CodeTokenRevoked:        "Token已撤销",
	CodeForbidden:           "禁止访问",
	CodeRateLimitExceeded:   "请求过于频繁",
	CodeNotFound:            "资源不存在",
	CodeSystemError:         "系统繁忙，请稍后重试",
}

// Success 成功响应
// 参数：
//   - c: Beego Controller
//   - data: 业务数据（可以是 map、struct、slice 等）
//   - traceID: 请求追踪ID
//
// 示例：
//
//	response.Success(c, map[string]interface{}{
//	    "room_id": "room-1",
//	    "status": "waiting",
//	}, traceID)
func Success(c *beego.Controller, data interface{}, traceID string) {
	c.Data["json"] = APIResponse{
		Code:      CodeSuccess,
		Message:   ErrorMessages[CodeSuccess],
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// Error 错误响应（使用预定义的错误消息）
// 参数：
//   - c: Beego Controller
//   - httpStatus: HTTP 状态码（如 400、409、500）
//   - code: 业务错误码（如 CodeInvalidState）
//   - traceID: 请求追踪ID
//
// 示例：
//
//	response.Error(c, 409, response.CodeProgramPaused, traceID)
func Error(c *beego.Controller, httpStatus int, code int, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   getErrorMessage(code),
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// ErrorWithMessage 错误响应（使用自定义错误消息）
// 参数：
//   - c: Beego Controller
//   - httpStatus: HTTP 状态码（如 400、409、500）
//   - code: 业务错误码（如 CodeBusinessError）
//   - message: 自定义错误消息
//   - traceID: 请求追踪ID
//
// 示例：
//
//	response.ErrorWithMessage(c, 500, response.CodeSystemError, "数据库连接失败", traceID)
func ErrorWithMessage(c *beego.Controller, httpStatus int, code int, message string, traceID string) {
	c.Ctx.Output.SetStatus(httpStatus)
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   message,
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// BadRequest 参数错误（400），message 直接返回给调用方
func BadRequest(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 400, CodeBadRequest, message, traceID)
}

// Conflict 业务状态冲突（409）
func Conflict(c *beego.Controller, code int, traceID string) {
	Error(c, 409, code, traceID)
}

func NotFound(c *beego.Controller, message string, traceID string) {
	ErrorWithMessage(c, 404, CodeNotFound, message, traceID)
}

// InternalError 系统错误（500），细节只记日志不返回
func InternalError(c *beego.Controller, traceID string) {
	Error(c, 500, CodeSystemError, traceID)
}

// Accepted 请求已接受但尚未处理完成（HTTP 202，带 Retry-After）
// 用于随机数尚未就绪等需要客户端轮询的场景
// 参数：
//   - c: Beego Controller
//   - code: 业务码（如 CodeStillProcessing）
//   - retryAfterSec: 建议重试间隔（秒）
//   - traceID: 请求追踪ID
func Accepted(c *beego.Controller, code int, retryAfterSec int, traceID string) {
	c.Ctx.Output.SetStatus(202)
	c.Ctx.Output.Header("Retry-After", strconv.Itoa(retryAfterSec))
	c.Data["json"] = APIResponse{
		Code:      code,
		Message:   getErrorMessage(code),
		Data:      nil,
		TraceID:   traceID,
		Timestamp: time.Now().UnixMilli(),
	}
	c.ServeJSON()
}

// getErrorMessage 获取错误消息，如果未定义则返回通用消息
func getErrorMessage(code int) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return "未知错误"
}
