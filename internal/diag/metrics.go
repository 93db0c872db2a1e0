package diag

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics: op_total{comp,stage,result}, error_total{comp,code},
// op_duration_ms{comp,stage}, registered against real prometheus
// collectors on Registry. Nothing here opens an HTTP /metrics endpoint,
// since the HTTP surface is out of scope — a host embedding deckxlate
// scrapes Registry itself.
var Registry = prometheus.NewRegistry()

var (
	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deckxlate_op_total",
		Help: "Component operations, labeled by component, stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deckxlate_error_total",
		Help: "Errors observed, labeled by component and classified error code.",
	}, []string{"comp", "code"})

	opDurationMS = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deckxlate_op_duration_ms",
		Help:    "Component operation duration in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
	}, []string{"comp", "stage"})
)

func init() {
	Registry.MustRegister(opTotal, errorTotal, opDurationMS)
}

// IncOp increments the operation counter for comp/stage with result in
// {"success","error"}.
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError increments the error counter for comp classified as code.
func IncError(comp string, code Code) {
	errorTotal.WithLabelValues(comp, string(code)).Inc()
}

// ObserveDuration records a stage duration in milliseconds.
func ObserveDuration(comp, stage string, durMS int64) {
	opDurationMS.WithLabelValues(comp, stage).Observe(float64(durMS))
}
