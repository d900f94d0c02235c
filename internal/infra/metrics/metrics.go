package metrics

import (
	"net/http"

	"github.com/Castellari-dev/cleaner/internal/domain/retention"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics records cleanup progress. It satisfies app.Observer.
type PrometheusMetrics struct {
	registry       prometheus.Registerer
	gatherer       prometheus.Gatherer
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	rowsDeleted    prometheus.Counter
	batchesTotal   prometheus.Counter
	attemptsFailed *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	tableRows      prometheus.Gauge
	expiredRows    prometheus.Gauge
	healthy        prometheus.Gauge
}

// InitPrometheusMetrics creates and registers the collectors on reg. A nil
// reg means a fresh private registry.
func InitPrometheusMetrics(namespace string, reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &PrometheusMetrics{
		registry: reg,
		gatherer: reg,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Cleanup runs by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of cleanup runs",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 3600},
			},
			[]string{"status"},
		),
		rowsDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_deleted_total",
				Help:      "Rows deleted across all runs",
			},
		),
		batchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Delete batches that removed at least one row",
			},
		),
		attemptsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_failed_total",
				Help:      "Failed store attempts by operation",
			},
			[]string{"op"},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Start time of the last successful run",
			},
		),
		tableRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_rows",
				Help:      "Rows in the purged table at the last health check",
			},
		),
		expiredRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "expired_rows",
				Help:      "Rows older than the cutoff at the last health check",
			},
		),
		healthy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "healthy",
				Help:      "1 if the last health check succeeded, 0 otherwise",
			},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.rowsDeleted,
		m.batchesTotal,
		m.attemptsFailed,
		m.lastSuccess,
		m.tableRows,
		m.expiredRows,
		m.healthy,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) AttemptFailed(op string, _ int, _ error) {
	m.attemptsFailed.WithLabelValues(op).Inc()
}

func (m *PrometheusMetrics) BatchDeleted(rows int64) {
	m.batchesTotal.Inc()
	m.rowsDeleted.Add(float64(rows))
}

func (m *PrometheusMetrics) RunFinished(res retention.RunResult) {
	status := "success"
	if !res.Success {
		status = "failure"
	}
	m.runsTotal.WithLabelValues(string(res.Trigger), status).Inc()
	m.runDuration.WithLabelValues(status).Observe(res.Elapsed.Seconds())
	if res.Success {
		m.lastSuccess.Set(float64(res.StartedAt.Unix()))
	}
}

func (m *PrometheusMetrics) HealthChecked(snap retention.HealthSnapshot) {
	if !snap.Healthy {
		m.healthy.Set(0)
		return
	}
	m.healthy.Set(1)
	m.tableRows.Set(float64(snap.TotalRows))
	m.expiredRows.Set(float64(snap.ExpiredRows))
}
