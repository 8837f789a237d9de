package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeVendor           = "vendor"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

// SchedulerMetrics captures reconciliation scheduler health signals.
type SchedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobTimeouts *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	runLoopLag  prometheus.Observer

	creditsDeducted prometheus.Counter
	hitsBilled      prometheus.Counter
	autoPaused      prometheus.Counter
	vendorErrors    *prometheus.CounterVec
	sweepEligible   prometheus.Counter
	sweepPurged     prometheus.Counter
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

	labels := prometheus.Labels{
		"service":     nonEmpty(strings.TrimSpace(cfg.ServiceName), "boostlane"),
		"environment": nonEmpty(strings.TrimSpace(cfg.Environment), "unknown"),
	}

	m := &SchedulerMetrics{
		jobRuns: newCounterVec(registerer, prometheus.CounterOpts{
			Name:        "scheduler_job_runs_total",
			Help:        "Scheduler job invocations by job name.",
			ConstLabels: labels,
		}, []string{"job"}),
		jobDuration: newHistogramVec(registerer, prometheus.HistogramOpts{
			Name:        "scheduler_job_duration_seconds",
			Help:        "Scheduler job duration by job name.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			ConstLabels: labels,
		}, []string{"job"}),
		jobTimeouts: newCounterVec(registerer, prometheus.CounterOpts{
			Name:        "scheduler_job_timeouts_total",
			Help:        "Scheduler jobs that hit their deadline.",
			ConstLabels: labels,
		}, []string{"job"}),
		jobErrors: newCounterVec(registerer, prometheus.CounterOpts{
			Name:        "scheduler_job_errors_total",
			Help:        "Scheduler job errors by job name and error type.",
			ConstLabels: labels,
		}, []string{"job", "error_type"}),
		vendorErrors: newCounterVec(registerer, prometheus.CounterOpts{
			Name:        "reconcile_vendor_errors_total",
			Help:        "Vendor usage query failures by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
	}

	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "scheduler_run_loop_lag_seconds",
		Help:        "How far behind schedule the run loop started.",
		Buckets:     []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		ConstLabels: labels,
	})
	m.runLoopLag = registerOrReuseHistogram(registerer, runLoopLag)

	m.creditsDeducted = registerOrReuseCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "reconcile_credits_deducted_total",
		Help:        "Total credits deducted by the reconciliation engine.",
		ConstLabels: labels,
	}))
	m.hitsBilled = registerOrReuseCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "reconcile_hits_billed_total",
		Help:        "Total hit units billed by the reconciliation engine.",
		ConstLabels: labels,
	}))
	m.autoPaused = registerOrReuseCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "reconcile_campaigns_auto_paused_total",
		Help:        "Campaigns auto-paused for insufficient balance.",
		ConstLabels: labels,
	}))
	m.sweepEligible = registerOrReuseCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "archive_sweep_delete_eligible_total",
		Help:        "Archived campaigns promoted to delete-eligible.",
		ConstLabels: labels,
	}))
	m.sweepPurged = registerOrReuseCounter(registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "archive_sweep_purged_total",
		Help:        "Delete-eligible campaigns physically removed.",
		ConstLabels: labels,
	}))

	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerErrorType(err)).Inc()
}

func (m *SchedulerMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil || lag <= 0 {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

func (m *SchedulerMetrics) AddCreditsDeducted(credits int64) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsDeducted.Add(float64(credits))
}

func (m *SchedulerMetrics) AddHitsBilled(hits int64) {
	if m == nil || hits <= 0 {
		return
	}
	m.hitsBilled.Add(float64(hits))
}

func (m *SchedulerMetrics) IncAutoPaused() {
	if m == nil {
		return
	}
	m.autoPaused.Inc()
}

func (m *SchedulerMetrics) IncVendorError(kind string) {
	if m == nil {
		return
	}
	m.vendorErrors.WithLabelValues(kind).Inc()
}

func (m *SchedulerMetrics) AddSweepEligible(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.sweepEligible.Add(float64(count))
}

func (m *SchedulerMetrics) AddSweepPurged(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.sweepPurged.Add(float64(count))
}

// ClassifySchedulerErrorType buckets job errors for the error counter.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerErrorTypeDeadlineExceeded
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrInvalidTransaction):
		return SchedulerErrorTypeDB
	default:
		return SchedulerErrorTypeUnknown
	}
}

func newCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return vec
}

func newHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return vec
}

func registerOrReuseCounter(registerer prometheus.Registerer, counter prometheus.Counter) prometheus.Counter {
	if err := registerer.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return counter
}

func registerOrReuseHistogram(registerer prometheus.Registerer, histogram prometheus.Histogram) prometheus.Observer {
	if err := registerer.Register(histogram); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
	}
	return histogram
}
