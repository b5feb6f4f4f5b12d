package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonDB                   = "db"
	JobReasonUnknown              = "unknown"
)

const (
	ItemOutcomeProcessed = "processed"
	ItemOutcomeFailed    = "failed"
)

// PayrunMetrics captures pay-run pipeline health signals.
type PayrunMetrics struct {
	batchTransitions *prometheus.CounterVec
	itemOutcomes     *prometheus.CounterVec
	itemDuration     prometheus.Histogram
	runDuration      *prometheus.HistogramVec
	recoveries       *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobErrors        *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
}

var (
	payrunMetricsOnce sync.Once
	payrunMetrics     *PayrunMetrics
)

// Payrun returns the singleton pay-run metrics registry.
func Payrun() *PayrunMetrics {
	return PayrunWithConfig(Config{})
}

// PayrunWithConfig returns the singleton pay-run metrics registry using config labels.
func PayrunWithConfig(cfg Config) *PayrunMetrics {
	payrunMetricsOnce.Do(func() {
		payrunMetrics = newPayrunMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return payrunMetrics
}

// ResetPayrunMetricsForTest resets the singleton so tests can register against a fresh registry.
func ResetPayrunMetricsForTest() {
	payrunMetricsOnce = sync.Once{}
	payrunMetrics = nil
}

func newPayrunMetrics(registerer prometheus.Registerer, cfg Config) *PayrunMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "workforce"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &PayrunMetrics{
		batchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "workforce_bulk_payroll_transitions_total",
			Help:        "Bulk payroll batch status transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		itemOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "workforce_bulk_payroll_items_total",
			Help:        "Bulk payroll items attempted by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome", "error_code"}),
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "workforce_bulk_payroll_item_duration_seconds",
			Help:        "Time to compute and persist one payroll item.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "workforce_bulk_payroll_run_duration_seconds",
			Help:        "Duration of a single driver run by final status.",
			Buckets:     []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
			ConstLabels: constLabels,
		}, []string{"status"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "workforce_bulk_payroll_recoveries_total",
			Help:        "Abandoned batches taken over by the runner.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "workforce_runner_job_runs_total",
			Help:        "Runner job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "workforce_runner_job_errors_total",
			Help:        "Runner job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "workforce_runner_job_duration_seconds",
			Help:        "Runner job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
	}

	registerer.MustRegister(
		m.batchTransitions,
		m.itemOutcomes,
		m.itemDuration,
		m.runDuration,
		m.recoveries,
		m.jobRuns,
		m.jobErrors,
		m.jobDuration,
	)
	return m
}

func (m *PayrunMetrics) IncBatchTransition(from, to string) {
	if m == nil {
		return
	}
	m.batchTransitions.WithLabelValues(from, to).Inc()
}

// IncItemOutcome counts an attempted item. errorCode is empty for processed items.
func (m *PayrunMetrics) IncItemOutcome(outcome, errorCode string) {
	if m == nil {
		return
	}
	m.itemOutcomes.WithLabelValues(outcome, errorCode).Inc()
}

func (m *PayrunMetrics) ObserveItemDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.itemDuration.Observe(d.Seconds())
}

func (m *PayrunMetrics) ObserveRunDuration(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *PayrunMetrics) IncRecovery(result string) {
	if m == nil {
		return
	}
	m.recoveries.WithLabelValues(result).Inc()
}

func (m *PayrunMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *PayrunMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *PayrunMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

// ClassifyJobReason maps runner errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return JobReasonUniqueViolation
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return JobReasonSerializationFailure
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) || errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, gorm.ErrInvalidDB) {
		return JobReasonDB
	}
	return JobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
