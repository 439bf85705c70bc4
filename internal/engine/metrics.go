package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла операция (включая движок)
	OperationDuration *prometheus.HistogramVec

	// Traffic: общее кол-во операций
	TotalOperations *prometheus.CounterVec

	// Errors: отклонённые политикой операции
	PolicyViolations *prometheus.CounterVec

	// Сколько полей вырезано field stripping'ом
	StrippedFields prometheus.Counter

	// Saturation: состояние Circuit Breaker движка (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Заполненность буфера decision trail (backpressure)
	TrailBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		OperationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dmlguard_operation_duration_seconds",
			Help:    "Histogram of guarded operation latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),

		TotalOperations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dmlguard_operations_total",
			Help: "Total number of processed operations.",
		}, []string{"operation"}),

		PolicyViolations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dmlguard_policy_violations_total",
			Help: "Total number of operations rejected by the removed-field policy.",
		}, []string{"operation"}),

		StrippedFields: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dmlguard_stripped_fields_total",
			Help: "Total number of fields silently stripped by permission evaluation.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "dmlguard_circuit_breaker_state",
			Help: "Current state of the engine circuit breaker (0=closed, 1=open).",
		}, []string{"engine"}),

		TrailBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dmlguard_trail_buffer_utilization",
			Help: "Current number of events in the decision trail buffer.",
		}),
	}
}
