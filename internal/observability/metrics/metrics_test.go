package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("status", "completed"),
		attribute.String("profile_id", "456"),
		attribute.String("error_code", "employee_not_found"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "profile_id" {
			t.Fatalf("expected profile_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordBatchRun(context.Background(), "completed")
	m.RecordItemFailure(context.Background(), "x")
	m.RecordPayrollRecord(context.Background(), "bulk_payroll", 1)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotNil(t, m)
	m.RecordPayrollRecord(context.Background(), "bulk_payroll", 900)
}
