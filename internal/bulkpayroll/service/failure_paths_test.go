package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/bulkpayrolltest"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errStoreDown = errors.New("store down")

// flakyRepo fails the nth call (1-based) of a single repository method.
type flakyRepo struct {
	domain.Repository
	method string
	failOn int64
	calls  atomic.Int64
	// leaseLost makes the failing call report zero rows instead of an error.
	leaseLost bool
}

func (r *flakyRepo) trip(method string) bool {
	if method != r.method {
		return false
	}
	return r.calls.Add(1) == r.failOn
}

func (r *flakyRepo) NextPendingItem(ctx context.Context, db *gorm.DB, batchID, afterID snowflake.ID) (*domain.Item, error) {
	if r.trip("NextPendingItem") {
		return nil, errStoreDown
	}
	return r.Repository.NextPendingItem(ctx, db, batchID, afterID)
}

func (r *flakyRepo) MarkItemProcessed(ctx context.Context, db *gorm.DB, itemID, payrollID snowflake.ID, now time.Time) (int64, error) {
	if r.trip("MarkItemProcessed") {
		return 0, errStoreDown
	}
	return r.Repository.MarkItemProcessed(ctx, db, itemID, payrollID, now)
}

func (r *flakyRepo) MarkItemFailed(ctx context.Context, db *gorm.DB, itemID snowflake.ID, code, message string, now time.Time) (int64, error) {
	if r.trip("MarkItemFailed") {
		return 0, errStoreDown
	}
	return r.Repository.MarkItemFailed(ctx, db, itemID, code, message, now)
}

func (r *flakyRepo) RecordSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, itemID snowflake.ID, amount decimal.Decimal, leaseUntil, now time.Time) (int64, error) {
	if r.trip("RecordSuccess") {
		if r.leaseLost {
			return 0, nil
		}
		return 0, errStoreDown
	}
	return r.Repository.RecordSuccess(ctx, db, id, driverID, itemID, amount, leaseUntil, now)
}

func newFlakyHarness(t *testing.T, flaky *flakyRepo) *bulkpayrolltest.Harness {
	t.Helper()
	return bulkpayrolltest.NewWithRepository(t, bulkpayrolltest.FixedHoursPolicy(), func(repo domain.Repository) domain.Repository {
		flaky.Repository = repo
		return flaky
	})
}

func countItems(t *testing.T, h *bulkpayrolltest.Harness, batchID snowflake.ID, status domain.ItemStatus) int {
	t.Helper()
	items, err := h.Service.ListItems(context.Background(), batchID.String())
	require.NoError(t, err)
	n := 0
	for _, item := range items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func TestStoreErrorBetweenItemsFailsBatch(t *testing.T) {
	h := newFlakyHarness(t, &flakyRepo{method: "NextPendingItem", failOn: 2})
	ctx := context.Background()
	batch := h.NewBatch(t, "January Payroll", h.NewProfile(t, "a@x.io", "25"), h.NewProfile(t, "b@x.io", "30"))

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, domain.BatchStatusFailed, result.Status)

	stored := h.Batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Contains(t, *stored.FailureReason, "load next item")
	assert.Nil(t, stored.DriverID)
	assert.NotNil(t, stored.FinishedAt)
	assert.Equal(t, 1, stored.ProcessedRecords)
	assert.Equal(t, int64(1), h.CountPayrolls(t, batch.ID))

	events := h.Listener.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, domain.BatchStatusFailed, events[len(events)-1].Status)
}

func TestUnrecordableItemFailureFailsBatch(t *testing.T) {
	h := newFlakyHarness(t, &flakyRepo{method: "MarkItemFailed", failOn: 1})
	ctx := context.Background()
	gone := h.NewProfile(t, "gone@x.io", "30")
	batch := h.NewBatch(t, "January Payroll", gone)
	require.NoError(t, h.Employees.Delete(ctx, gone.ID.String()))

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, domain.BatchStatusFailed, result.Status)

	stored := h.Batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Contains(t, *stored.FailureReason, "record item failure")
	assert.Nil(t, stored.DriverID)
	assert.Equal(t, 0, stored.ProcessedRecords)
	assert.Equal(t, 1, countItems(t, h, batch.ID, domain.ItemStatusPending))
}

func TestItemStoreErrorIsRecordedAsPersistenceError(t *testing.T) {
	h := newFlakyHarness(t, &flakyRepo{method: "MarkItemProcessed", failOn: 1})
	ctx := context.Background()
	batch := h.NewBatch(t, "January Payroll", h.NewProfile(t, "a@x.io", "25"), h.NewProfile(t, "b@x.io", "25"))

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompletedWithErrors, result.Status)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assertDecimal(t, "900", result.TotalAmount)

	// The failed item's payroll insert was rolled back with it.
	assert.Equal(t, int64(1), h.CountPayrolls(t, batch.ID))

	manifest, err := h.Service.FailureManifest(ctx, batch.ID.String())
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, domain.ErrorCodePersistence, manifest[0].ErrorCode)
	assert.Contains(t, manifest[0].ErrorMessage, "store down")
}

func TestLostOwnershipRollsBackInFlightItem(t *testing.T) {
	h := newFlakyHarness(t, &flakyRepo{method: "RecordSuccess", failOn: 2, leaseLost: true})
	ctx := context.Background()
	batch := h.NewBatch(t, "January Payroll", h.NewProfile(t, "a@x.io", "25"), h.NewProfile(t, "b@x.io", "30"))

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, result.Status)

	assert.Equal(t, int64(1), h.CountPayrolls(t, batch.ID))
	assert.Equal(t, 1, countItems(t, h, batch.ID, domain.ItemStatusProcessed))
	assert.Equal(t, 1, countItems(t, h, batch.ID, domain.ItemStatusPending))

	stored := h.Batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusProcessing, stored.Status)
	assert.Equal(t, 1, stored.ProcessedRecords)
	assert.Equal(t, 1, stored.SucceededRecords)
}
