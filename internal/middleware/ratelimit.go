package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinflip-server/common/logger"
	"coinflip-server/internal/common/helper"
	"coinflip-server/internal/common/response"
	"coinflip-server/internal/config"
	infrds "coinflip-server/internal/infra/redis"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitFilter 接口限流：按 IP 与按账户两个维度
// 按账户维度依赖 UserAuthFilter 写入的 account_id，需注册在认证之后
func RateLimitFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	if cfg == nil || !cfg.RateLimit.Enabled {
		return
	}

	traceID := helper.GetTraceID(ctx)
	rdb := infrds.Client()
	if rdb == nil {
		// Redis 不可用时，跳过限流（降级）
		logger.Debug("redis not available, skip rate limit", zap.String("trace_id", traceID))
		return
	}
	reqCtx := ctx.Request.Context()

	reject := func(window int) {
		ctx.Output.Header("Retry-After", strconv.Itoa(window))
		ctx.Output.SetStatus(http.StatusTooManyRequests)
		_ = ctx.Output.JSON(response.APIResponse{
			Code:      response.CodeRateLimitExceeded,
			Message:   "请求频率超限，请稍后重试",
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	if lim := cfg.RateLimit.ByIP; lim.Requests > 0 {
		clientIP := getClientIP(ctx)
		if !checkRateLimit(reqCtx, rdb, "ip", clientIP, lim.Requests, lim.WindowSeconds) {
			logger.Warn("ip rate limit exceeded",
				zap.String("trace_id", traceID),
				zap.String("client_ip", clientIP))
			reject(lim.WindowSeconds)
			return
		}
	}

	if lim := cfg.RateLimit.ByAccount; lim.Requests > 0 {
		if v := ctx.Input.GetData("account_id"); v != nil {
			accountID := fmt.Sprint(v)
			if !checkRateLimit(reqCtx, rdb, "account", accountID, lim.Requests, lim.WindowSeconds) {
				logger.Warn("account rate limit exceeded",
					zap.String("trace_id", traceID),
					zap.String("account_id", accountID))
				reject(lim.WindowSeconds)
				return
			}
		}
	}
}

// checkRateLimit 滑动窗口限流（Redis Sorted Set）
// 返回 true 表示放行；Redis 出错时降级放行
func checkRateLimit(ctx context.Context, rdb *redis.Client, dimension, key string, limit int, windowSeconds int) bool {
	if rdb == nil {
		return true
	}
	if windowSeconds <= 0 {
		windowSeconds = 1
	}

	redisKey := infrds.RateLimitKey(dimension, key)
	now := time.Now()
	windowStart := now.Add(-time.Duration(windowSeconds) * time.Second).UnixMilli()

	pipe := rdb.Pipeline()
	// 1. 移除窗口外的记录
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	// 2. 统计当前窗口内的请求数
	countCmd := pipe.ZCount(ctx, redisKey, strconv.FormatInt(windowStart, 10), "+inf")
	// 3. 添加当前请求
	pipe.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	// 4. 设置过期时间
	pipe.Expire(ctx, redisKey, time.Duration(windowSeconds+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("rate limit check failed", zap.Error(err))
		return true
	}
	count, err := countCmd.Result()
	if err != nil {
		logger.Warn("rate limit count failed", zap.Error(err))
		return true
	}
	return count < int64(limit)
}

// getClientIP 获取客户端真实IP
func getClientIP(ctx *beegocontext.Context) string {
	if ip := strings.TrimSpace(ctx.Input.Header("X-Real-IP")); ip != "" {
		return ip
	}
	// 取 X-Forwarded-For 的第一个
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr); err == nil {
		return host
	}
	return ctx.Request.RemoteAddr
}
