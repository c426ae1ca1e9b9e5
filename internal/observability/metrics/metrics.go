package metrics

import (
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "gse_"

	ResultSuccess = "success"
	ResultError   = "error"

	DispatchResultExecuted = "executed"
	DispatchResultFailed   = "failed"
	DispatchResultTimeout  = "timeout"
)

var (
	registerOnce sync.Once

	ingestPoints  *prometheus.CounterVec
	ingestErrors  *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec

	anomaliesDetected *prometheus.CounterVec

	alarmEventsTotal *prometheus.CounterVec
	activeAlarms     prometheus.Gauge

	commandSubmissions *prometheus.CounterVec
	commandRejections  *prometheus.CounterVec
	dispatchResults    *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers control-core metrics and, when a pool is supplied,
// DB-backed gauges over the history tables.
func Init(pool *pgxpool.Pool, logger zerolog.Logger) {
	registerOnce.Do(func() {
		ingestPoints = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_points_total",
				Help: "Total ingested telemetry points by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest rejections by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest pipeline latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		anomaliesDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomalies_detected_total",
				Help: "Total detector violations by alarm type",
			},
			[]string{"type"},
		)

		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Total alarm lifecycle events by type",
			},
			[]string{"event"},
		)
		activeAlarms = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alarms",
				Help: "Currently active alarms",
			},
		)

		commandSubmissions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_submissions_total",
				Help: "Total submitted commands by decision",
			},
			[]string{"decision"},
		)
		commandRejections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_rejections_total",
				Help: "Total rejected commands by reason class",
			},
			[]string{"reason"},
		)
		dispatchResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dispatch_results_total",
				Help: "Total command dispatch results by status",
			},
			[]string{"status"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total alarm report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Alarm report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestPoints,
			ingestErrors,
			ingestLatency,
			anomaliesDetected,
			alarmEventsTotal,
			activeAlarms,
			commandSubmissions,
			commandRejections,
			dispatchResults,
			reportExportTotal,
			reportExportLatency,
		)

		if pool != nil {
			registerDBMetrics(pool, logger)
		}
	})
}

// ObserveIngest records ingest duration and result for one point.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if ingestPoints != nil {
		ingestPoints.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments the ingest rejection counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncAnomaly increments the detector violation counter.
func IncAnomaly(alarmType string) {
	if alarmType == "" {
		alarmType = "unknown"
	}
	if anomaliesDetected != nil {
		anomaliesDetected.WithLabelValues(alarmType).Inc()
	}
}

// IncAlarmEvent increments alarm lifecycle counters.
func IncAlarmEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(event).Inc()
	}
}

// SetActiveAlarms sets the active alarm gauge.
func SetActiveAlarms(count int) {
	if count < 0 {
		count = 0
	}
	if activeAlarms != nil {
		activeAlarms.Set(float64(count))
	}
}

// IncCommandDecision increments the submission counter by admission decision.
func IncCommandDecision(decision string) {
	if decision == "" {
		decision = "unknown"
	}
	if commandSubmissions != nil {
		commandSubmissions.WithLabelValues(decision).Inc()
	}
}

// IncCommandRejection increments the rejection counter by reason class.
func IncCommandRejection(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if commandRejections != nil {
		commandRejections.WithLabelValues(reason).Inc()
	}
}

// IncDispatchResult increments the dispatch result counter.
func IncDispatchResult(status string) {
	if status == "" {
		status = "unknown"
	}
	if dispatchResults != nil {
		dispatchResults.WithLabelValues(status).Inc()
	}
}

// ObserveReportExport records report export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}
