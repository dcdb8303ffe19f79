package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wagerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wager_requests_total",
			Help: "Total wager operations by op, result and choice",
		},
		[]string{"op", "result", "choice"},
	)

	wagerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wager_request_duration_ms",
			Help:    "Wager operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"op", "result"},
	)
)

// RecordWager 记录注单类操作（open/commit/refund）的业务指标
// result: "success" | "fail"
func RecordWager(op, result, choice string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	ch := strings.ToLower(strings.TrimSpace(choice))
	if ch == "" {
		ch = "unknown"
	}
	wagerTotal.WithLabelValues(op, res, ch).Inc()
	wagerDuration.WithLabelValues(op, res).Observe(float64(time.Since(started).Milliseconds()))
}
