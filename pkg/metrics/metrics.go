package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Snapshot Metrics
	SnapshotFetchDuration *prometheus.HistogramVec
	SnapshotFetchErrors   *prometheus.CounterVec
	StaleResponsesTotal   prometheus.Counter
	SnapshotRows          *prometheus.GaugeVec

	// Reconciliation Metrics
	ClassificationsTotal *prometheus.CounterVec
	DisagreementsTotal   *prometheus.CounterVec
	DeriveDuration       prometheus.Histogram

	// Repair Metrics
	RepairActionsTotal *prometheus.CounterVec
	ImportRecordsTotal *prometheus.CounterVec
	ImportParseErrors  prometheus.Counter

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	ActiveSessions prometheus.Gauge
}

// NewCollector registers the application metrics with reg. A nil reg uses
// the default Prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by type",
			},
			[]string{"error_type", "endpoint"},
		),

		SnapshotFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_duration_seconds",
				Help:      "Duration of station snapshot fetches by source",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),

		SnapshotFetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_errors_total",
				Help:      "Total number of failed snapshot fetches by source",
			},
			[]string{"source"},
		),

		StaleResponsesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_discarded_total",
				Help:      "Fetch responses discarded because a newer request was issued",
			},
		),

		SnapshotRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_rows",
				Help:      "Rows in the latest snapshot by kind",
			},
			[]string{"kind"}, // "rinex", "station_info"
		),

		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifications_total",
				Help:      "RINEX records classified by gap type",
			},
			[]string{"gap_type"},
		),

		DisagreementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classification_disagreements_total",
				Help:      "Local classifications that differ from the server-reported status",
			},
			[]string{"field"},
		),

		DeriveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "derive_duration_seconds",
				Help:      "Time to classify, filter and group a snapshot",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),

		RepairActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repair_actions_total",
				Help:      "Repair actions submitted by action and outcome",
			},
			[]string{"action", "outcome"},
		),

		ImportRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_records_total",
				Help:      "Station info records submitted from files by outcome",
			},
			[]string{"outcome"},
		),

		ImportParseErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_parse_errors_total",
				Help:      "station.info lines that could not be parsed",
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // "in_use", "idle", "total"
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),

		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_review_sessions",
				Help:      "Stations with an open review session",
			},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordFetchError counts a failed snapshot fetch
func (c *Collector) RecordFetchError(source string) {
	c.SnapshotFetchErrors.WithLabelValues(source).Inc()
}

// RecordSnapshot updates the snapshot size gauges
func (c *Collector) RecordSnapshot(rinex, intervals int) {
	c.SnapshotRows.WithLabelValues("rinex").Set(float64(rinex))
	c.SnapshotRows.WithLabelValues("station_info").Set(float64(intervals))
}

// RecordClassifications adds per gap type counts
func (c *Collector) RecordClassifications(counts map[string]int) {
	for gapType, n := range counts {
		c.ClassificationsTotal.WithLabelValues(gapType).Add(float64(n))
	}
}

// RecordDisagreement counts one cross-check difference
func (c *Collector) RecordDisagreement(field string) {
	c.DisagreementsTotal.WithLabelValues(field).Inc()
}

// RecordRepairAction counts a submitted repair action
func (c *Collector) RecordRepairAction(action, outcome string) {
	c.RepairActionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordImport counts created and failed import records
func (c *Collector) RecordImport(created, failed int) {
	c.ImportRecordsTotal.WithLabelValues("created").Add(float64(created))
	c.ImportRecordsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
