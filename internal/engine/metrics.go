package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Traffic: поток сэмплов от коллекторов
	SamplesTotal *prometheus.CounterVec

	// Errors: брак на ingest-границе
	ValidationRejects prometheus.Counter

	// Детекция: сработки по уровням серьезности
	AnomaliesTotal *prometheus.CounterVec

	// Распределение итоговых скоров
	ThreatScore prometheus.Histogram

	// Реагирование: действия по типам
	ActionsTotal *prometheus.CounterVec

	// Saturation: живые карантины
	ActiveQuarantines prometheus.Gauge

	// Latency конвейера (чистый in-memory путь)
	PipelineDuration prometheus.Histogram

	// Audit: заполненность буфера трейла (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		SamplesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_samples_total",
			Help: "Total number of behavior samples processed.",
		}, []string{"agent_id"}),

		ValidationRejects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sentinel_validation_rejects_total",
			Help: "Samples rejected at the ingest boundary.",
		}),

		AnomaliesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_anomalies_total",
			Help: "Detected behavioral anomalies by severity.",
		}, []string{"severity"}),

		ThreatScore: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_threat_score",
			Help:    "Distribution of computed threat scores.",
			Buckets: []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
		}),

		ActionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_response_actions_total",
			Help: "Response actions taken by type.",
		}, []string{"action"}),

		ActiveQuarantines: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_active_quarantines",
			Help: "Number of agents currently quarantined.",
		}),

		PipelineDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_pipeline_duration_seconds",
			Help:    "Histogram of per-sample pipeline latencies.",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_audit_buffer_utilization",
			Help: "Current number of events in the audit buffer.",
		}),
	}
}
