package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "maintenance_"

	resultSuccess = "success"
	resultError   = "error"

	messageResultSaved      = "saved"
	messageResultDuplicate  = "duplicate"
	messageResultParseError = "parse_error"
	messageResultSaveError  = "save_error"
)

var (
	registerOnce sync.Once

	ingestMessages *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	predictionsTotal  *prometheus.CounterVec
	predictionLatency *prometheus.HistogramVec

	upstreamReconnects prometheus.Counter
	upstreamEvents     prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Total ingested telemetry messages by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Message processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		predictionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "predictions_total",
				Help: "Total failure predictions by result and confidence",
			},
			[]string{"result", "confidence"},
		)
		predictionLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "prediction_latency_seconds",
				Help:    "Model prediction latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		upstreamReconnects = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_reconnects_total",
				Help: "Total upstream stream reconnect attempts",
			},
		)
		upstreamEvents = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_events_total",
				Help: "Total events received from the upstream stream",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestMessages,
			ingestLatency,
			predictionsTotal,
			predictionLatency,
			upstreamReconnects,
			upstreamEvents,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveMessage records processing duration and outcome for one message.
func ObserveMessage(result string, duration time.Duration) {
	if result == "" {
		result = messageResultSaved
	}
	if ingestMessages != nil {
		ingestMessages.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePrediction records one prediction outcome.
func ObservePrediction(result, confidence string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if confidence == "" {
		confidence = "unknown"
	}
	if predictionsTotal != nil {
		predictionsTotal.WithLabelValues(result, confidence).Inc()
	}
	if predictionLatency != nil {
		predictionLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncUpstreamReconnect increments the upstream reconnect counter.
func IncUpstreamReconnect() {
	if upstreamReconnects != nil {
		upstreamReconnects.Inc()
	}
}

// IncUpstreamEvent increments the upstream event counter.
func IncUpstreamEvent() {
	if upstreamEvents != nil {
		upstreamEvents.Inc()
	}
}

// ObserveExport records report export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	MessageResultSaved      = messageResultSaved
	MessageResultDuplicate  = messageResultDuplicate
	MessageResultParseError = messageResultParseError
	MessageResultSaveError  = messageResultSaveError
)
