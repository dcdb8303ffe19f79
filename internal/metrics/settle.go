package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settle_requests_total",
			Help: "Total ResolveOutcome calls by result and outcome",
		},
		[]string{"result", "outcome"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settle_request_duration_ms",
			Help:    "ResolveOutcome duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	payoutLamports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settle_payout_lamports_total",
			Help: "Lamports paid out of the reserve by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordSettle 记录开奖指标
// result: "success" | "pending" | "fail"，pending 表示随机数尚未就绪
func RecordSettle(result, outcome string, started time.Time) {
	res := result
	if res != "success" && res != "pending" {
		res = "fail"
	}
	oc := strings.ToLower(strings.TrimSpace(outcome))
	if oc == "" {
		oc = "unknown"
	}
	settleTotal.WithLabelValues(res, oc).Inc()
	settleDuration.WithLabelValues(res).Observe(float64(time.Since(started).Milliseconds()))
}

// AddPayout 累计派彩金额
func AddPayout(outcome string, lamports uint64) {
	if lamports == 0 {
		return
	}
	payoutLamports.WithLabelValues(outcome).Add(float64(lamports))
}
