package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SchedulerJobReasonDeadlineExceeded = "deadline_exceeded"
	SchedulerJobReasonUnknown          = "unknown"
)

// SchedulerMetrics captures filing-deadline scheduler health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	milestoneDrift *prometheus.CounterVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	constLabels := prometheus.Labels{
		"service": defaultString(cfg.ServiceName, "practicehub"),
		"env":     defaultString(cfg.Environment, "unknown"),
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "practicehub_scheduler_job_runs_total",
		Help:        "Scheduler job executions by job name.",
		ConstLabels: constLabels,
	}, []string{"job"})

	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "practicehub_scheduler_job_duration_seconds",
		Help:        "Scheduler job wall time by job name.",
		ConstLabels: constLabels,
		Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"job"})

	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "practicehub_scheduler_job_timeouts_total",
		Help:        "Scheduler jobs that exceeded their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})

	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "practicehub_scheduler_job_errors_total",
		Help:        "Scheduler job errors by job name and reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})

	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "practicehub_scheduler_batch_processed_total",
		Help:        "Items processed by scheduler jobs.",
		ConstLabels: constLabels,
	}, []string{"job"})

	milestoneDrift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "practicehub_workflow_milestone_drift_total",
		Help:        "Workflows whose denormalized milestones disagree with history.",
		ConstLabels: constLabels,
	}, []string{"workflow_type"})

	registerer.MustRegister(jobRuns, jobDuration, jobTimeouts, jobErrors, batchProcessed, milestoneDrift)

	return &SchedulerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		batchProcessed: batchProcessed,
		milestoneDrift: milestoneDrift,
	}
}

func (m *SchedulerMetrics) RecordJobRun(job string, duration time.Duration) {
	if m == nil {
		return
	}
	job = normalizeJob(job)
	m.jobRuns.WithLabelValues(job).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) RecordJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(normalizeJob(job)).Inc()
}

func (m *SchedulerMetrics) RecordJobError(job, reason string) {
	if m == nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = SchedulerJobReasonUnknown
	}
	m.jobErrors.WithLabelValues(normalizeJob(job), reason).Inc()
}

func (m *SchedulerMetrics) RecordBatchProcessed(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(normalizeJob(job)).Add(float64(count))
}

func (m *SchedulerMetrics) RecordMilestoneDrift(workflowType string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.milestoneDrift.WithLabelValues(strings.TrimSpace(workflowType)).Add(float64(count))
}

func normalizeJob(job string) string {
	job = strings.TrimSpace(job)
	if job == "" {
		return "unknown"
	}
	return job
}
