package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sensor_ledger_cycle_total", Help: "Poll cycles by outcome"},
		[]string{"status"},
	)
	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "sensor_ledger_cycle_duration_seconds", Help: "Fetch and reconcile latency", Buckets: prometheus.DefBuckets},
		[]string{"status"},
	)
	UnresolvedRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sensor_ledger_unresolved_records", Help: "Records in the current snapshot without a matching event"},
	)
	LatestRecordIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "sensor_ledger_latest_record_index", Help: "Ledger index of the newest record"},
	)
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sensor_ledger_publish_total", Help: "Snapshot writes per sink"},
		[]string{"publisher", "status"},
	)
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(CycleTotal, CycleDuration, UnresolvedRecords, LatestRecordIndex, PublishTotal, HttpRequestsTotal)
}

// StatusLabel buckets an HTTP status code.
func StatusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
