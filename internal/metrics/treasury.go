package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	treasuryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "treasury_requests_total",
			Help: "Total reserve/account admin operations by op and result",
		},
		[]string{"op", "result"},
	)

	treasuryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "treasury_request_duration_ms",
			Help:    "Reserve/account admin operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"op"},
	)

	reserveBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "house_reserve_balance_lamports",
		Help: "Last committed house reserve balance",
	})
)

// RecordTreasury op: init | deposit | withdraw | pause | adjust
func RecordTreasury(op, result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	treasuryTotal.WithLabelValues(op, res).Inc()
	treasuryDuration.WithLabelValues(op).Observe(float64(time.Since(started).Milliseconds()))
}

// SetReserveBalance 在事务提交后更新余额仪表
func SetReserveBalance(lamports uint64) { reserveBalance.Set(float64(lamports)) }
