package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: JobReasonDeadlineExceeded},
		{name: "canceled wrapped", err: fmt.Errorf("resume: %w", context.Canceled), want: JobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: JobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: JobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: JobReasonUniqueViolation},
		{name: "other pg", err: &pgconn.PgError{Code: "42P01"}, want: JobReasonDB},
		{name: "unknown", err: errors.New("boom"), want: JobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyJobReason(tc.err))
		})
	}
}

func TestPayrunMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newPayrunMetrics(registry, Config{ServiceName: "workforce", Environment: "test"})

	m.IncBatchTransition("draft", "processing")
	m.IncBatchTransition("draft", "processing")
	m.IncItemOutcome(ItemOutcomeFailed, "employee_not_found")
	m.IncRecovery("resumed")
	m.IncJobError("recover_abandoned", context.DeadlineExceeded)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.batchTransitions.WithLabelValues("draft", "processing")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.itemOutcomes.WithLabelValues(ItemOutcomeFailed, "employee_not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recoveries.WithLabelValues("resumed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("recover_abandoned", JobReasonDeadlineExceeded)))
}

func TestPayrunMetricsItemDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newPayrunMetrics(registry, Config{})

	m.ObserveItemDuration(20 * time.Millisecond)
	m.ObserveItemDuration(40 * time.Millisecond)

	var out dto.Metric
	require.NoError(t, m.itemDuration.Write(&out))
	assert.Equal(t, uint64(2), out.GetHistogram().GetSampleCount())

	families, err := registry.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "workforce_bulk_payroll_item_duration_seconds" {
			found = true
			for _, label := range f.GetMetric()[0].GetLabel() {
				if label.GetName() == "service" {
					assert.Equal(t, "workforce", label.GetValue())
				}
			}
		}
	}
	assert.True(t, found)
}

func TestNilPayrunMetricsIsSafe(t *testing.T) {
	var m *PayrunMetrics
	m.IncBatchTransition("a", "b")
	m.IncItemOutcome(ItemOutcomeProcessed, "")
	m.ObserveItemDuration(time.Second)
	m.IncJobError("x", errors.New("y"))
}
