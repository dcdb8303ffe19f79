package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var workerItems = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_items_total",
		Help: "Items processed by background workers",
	},
	[]string{"worker", "result"},
)

// RecordWorkerItem worker: outbox | fulfiller | auto_settle | auto_refund
func RecordWorkerItem(worker, result string) {
	workerItems.WithLabelValues(worker, result).Inc()
}
