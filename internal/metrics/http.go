package metrics

import (
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "HTTP request duration in ms",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"path", "method"},
	)
)

// HTTPMetricsFilter 记录 HTTP 请求指标
func HTTPMetricsFilter(ctx *context.Context) {
	start := time.Now()
	// 让后续处理继续
	ctx.Input.SetData("_metrics_start", start)
}

// HTTPMetricsAfter 用于在响应完成后记录耗时与状态码
func HTTPMetricsAfter(ctx *context.Context) {
	v := ctx.Input.GetData("_metrics_start")
	start, _ := v.(time.Time)
	if !start.IsZero() {
		dur := time.Since(start).Milliseconds()
		// 按路由模式聚合
		path := routePattern(ctx)
		method := ctx.Input.Method()
		status := ctx.ResponseWriter.Status
		httpReqDuration.WithLabelValues(path, method).Observe(float64(dur))
		httpReqTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	}
}

func routePattern(ctx *context.Context) string {
	if p, ok := ctx.Input.GetData("RouterPattern").(string); ok && p != "" {
		return p
	}
	return ctx.Input.URL()
}
