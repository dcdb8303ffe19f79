package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"coinflip-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// 前端需要读取的响应头
var exposedHeaders = []string{"X-Request-Id", "Retry-After"}

// CORSFilter CORS 跨域中间件
func CORSFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	if cfg == nil || !cfg.CORS.Enabled {
		return
	}

	origin := ctx.Request.Header.Get("Origin")
	if origin == "" {
		return
	}

	// 检查 Origin 是否在允许列表中
	allowed := false
	for _, allowedOrigin := range cfg.CORS.AllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}

	ctx.Output.Header("Access-Control-Allow-Origin", origin)
	ctx.Output.Header("Vary", "Origin")
	ctx.Output.Header("Access-Control-Allow-Methods", strings.Join(cfg.CORS.AllowedMethods, ", "))
	ctx.Output.Header("Access-Control-Allow-Headers", strings.Join(cfg.CORS.AllowedHeaders, ", "))
	ctx.Output.Header("Access-Control-Expose-Headers", strings.Join(exposedHeaders, ", "))
	ctx.Output.Header("Access-Control-Max-Age", strconv.Itoa(cfg.CORS.MaxAge))

	if cfg.CORS.AllowCredentials {
		ctx.Output.Header("Access-Control-Allow-Credentials", "true")
	}

	// 处理 OPTIONS 预检请求
	if ctx.Request.Method == http.MethodOptions {
		ctx.Output.SetStatus(http.StatusNoContent)
		ctx.ResponseWriter.WriteHeader(http.StatusNoContent)
	}
}
