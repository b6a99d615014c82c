package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records runs of the maintenance jobs.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	lastRun  *prometheus.GaugeVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job wall time.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"job"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_rows_total",
			Help:      "Rows cancelled or pruned by cron jobs.",
		}, []string{"job"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.rows, m.lastRun)
	return m
}

func (m *CronJobMetrics) enabled() bool {
	return m != nil && m.runs != nil
}

func (m *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if m.enabled() {
		m.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
	}
}

// IncSuccess also stamps the last-success gauge.
func (m *CronJobMetrics) IncSuccess(job string) {
	if !m.enabled() {
		return
	}
	job = normalizeLabel(job)
	m.runs.WithLabelValues(job, RunSucceeded).Inc()
	m.lastRun.WithLabelValues(job).SetToCurrentTime()
}

func (m *CronJobMetrics) IncFailure(job string) {
	if m.enabled() {
		m.runs.WithLabelValues(normalizeLabel(job), RunFailed).Inc()
	}
}

// AddAffected ignores non-positive counts.
func (m *CronJobMetrics) AddAffected(job string, n int64) {
	if m.enabled() && n > 0 {
		m.rows.WithLabelValues(normalizeLabel(job)).Add(float64(n))
	}
}
