package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/bulkpayrolltest"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/config"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestStartBatchPaysEveryEmployee(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	a := h.NewProfile(t, "a@x.io", "25")
	b := h.NewProfile(t, "b@x.io", "30")
	c := h.NewProfile(t, "c@x.io", "20")
	batch := h.NewBatch(t, "January Payroll", a, b, c)

	assert.Equal(t, domain.BatchStatusDraft, batch.Status)
	assert.Equal(t, 3, batch.TotalRecords)
	assert.Equal(t, "january-payroll-20260101", batch.Reference)

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, result.Status)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assertDecimal(t, "2700", result.TotalAmount)

	stored := h.Batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.ProcessedRecords)
	assert.Nil(t, stored.DriverID)
	assert.NotNil(t, stored.FinishedAt)
	assertDecimal(t, "2700", stored.TotalAmount)

	payrolls, err := h.Payroll.List(ctx, payrolldomain.ListRequest{BulkPayrollID: batch.ID.String()})
	require.NoError(t, err)
	require.Len(t, payrolls.Payrolls, 3)
	nets := map[string]string{a.ID.String(): "900", b.ID.String(): "1080", c.ID.String(): "720"}
	for _, p := range payrolls.Payrolls {
		assertDecimal(t, nets[p.ProfileID.String()], p.NetPay)
		assertDecimal(t, "40", p.TotalHours)
		assert.Equal(t, payrolldomain.StatusPending, p.Status)
	}

	items, err := h.Service.ListItems(ctx, batch.ID.String())
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, domain.ItemStatusProcessed, item.Status)
		assert.NotNil(t, item.PayrollID)
	}

	events := h.Listener.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.BatchStatusCompleted, last.Status)
	assert.Equal(t, 3, last.Processed)
}

func TestStartBatchRecordsItemFailures(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	a := h.NewProfile(t, "a@x.io", "25")
	gone := h.NewProfile(t, "gone@x.io", "30")
	c := h.NewProfile(t, "c@x.io", "20")
	batch := h.NewBatch(t, "January Payroll", a, gone, c)
	require.NoError(t, h.Employees.Delete(ctx, gone.ID.String()))

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompletedWithErrors, result.Status)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assertDecimal(t, "1620", result.TotalAmount)
	assert.Equal(t, int64(2), h.CountPayrolls(t, batch.ID))

	manifest, err := h.Service.FailureManifest(ctx, batch.ID.String())
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, gone.ID, manifest[0].ProfileID)
	assert.Equal(t, domain.ErrorCodeEmployeeNotFound, manifest[0].ErrorCode)
	assert.NotEmpty(t, manifest[0].ErrorMessage)
}

func TestCreateBatchValidation(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	a := h.NewProfile(t, "a@x.io", "25")

	cases := map[string]struct {
		req  domain.CreateBatchRequest
		want error
	}{
		"missing name": {
			req:  domain.CreateBatchRequest{PayPeriodStart: bulkpayrolltest.PeriodStart, PayPeriodEnd: bulkpayrolltest.PeriodEnd, EmployeeIDs: []string{a.ID.String()}},
			want: domain.ErrInvalidName,
		},
		"inverted period": {
			req:  domain.CreateBatchRequest{Name: "x", PayPeriodStart: bulkpayrolltest.PeriodEnd, PayPeriodEnd: bulkpayrolltest.PeriodStart, EmployeeIDs: []string{a.ID.String()}},
			want: domain.ErrInvalidPayPeriod,
		},
		"no employees": {
			req:  domain.CreateBatchRequest{Name: "x", PayPeriodStart: bulkpayrolltest.PeriodStart, PayPeriodEnd: bulkpayrolltest.PeriodEnd},
			want: domain.ErrEmptyEmployeeSelection,
		},
		"bad employee id": {
			req:  domain.CreateBatchRequest{Name: "x", PayPeriodStart: bulkpayrolltest.PeriodStart, PayPeriodEnd: bulkpayrolltest.PeriodEnd, EmployeeIDs: []string{"abc"}},
			want: domain.ErrInvalidEmployeeID,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.Service.CreateBatch(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	list, err := h.Service.ListBatches(ctx, domain.ListBatchRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Batches)
}

func TestCreateBatchCollapsesDuplicateEmployees(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	a := h.NewProfile(t, "a@x.io", "25")

	batch := h.NewBatch(t, "Dupes", a, a)
	assert.Equal(t, 1, batch.TotalRecords)
}

func TestStartBatchTwiceIsRejected(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	batch := h.NewBatch(t, "Once", h.NewProfile(t, "a@x.io", "25"))

	_, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	assert.ErrorIs(t, err, domain.ErrBatchNotStartable)
	assert.Equal(t, domain.BatchStatusCompleted, result.Status)
	assert.Equal(t, int64(1), h.CountPayrolls(t, batch.ID))
}

func TestConcurrentStartsPayOnce(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	batch := h.NewBatch(t, "Race",
		h.NewProfile(t, "a@x.io", "25"),
		h.NewProfile(t, "b@x.io", "30"),
		h.NewProfile(t, "c@x.io", "20"),
	)

	const drivers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		started   int
		rejected  int
		unexpects []error
	)
	for i := 0; i < drivers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Service.StartBatch(ctx, batch.ID.String())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				started++
			case errors.Is(err, domain.ErrBatchNotStartable):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unexpects)
	assert.Equal(t, 1, started)
	assert.Equal(t, drivers-1, rejected)
	assert.Equal(t, int64(3), h.CountPayrolls(t, batch.ID))
	assert.Equal(t, domain.BatchStatusCompleted, h.Batch(t, batch.ID).Status)
}

func TestStartBatchWithoutItemsFails(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	now := h.Clock.Now()
	batch := domain.Batch{
		ID:             h.Node.Generate(),
		Reference:      "empty-20260101",
		Name:           "Empty",
		PayPeriodStart: bulkpayrolltest.PeriodStart,
		PayPeriodEnd:   bulkpayrolltest.PeriodEnd,
		Status:         domain.BatchStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, h.Repo.InsertBatch(ctx, h.DB, &batch))

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	assert.ErrorIs(t, err, domain.ErrNoItems)
	assert.Equal(t, domain.BatchStatusFailed, result.Status)

	stored := h.Batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusFailed, stored.Status)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, domain.ErrNoItems.Error(), *stored.FailureReason)
}

func TestPauseAndResumeProcessesEachItemOnce(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	batch := h.NewBatch(t, "Pausable",
		h.NewProfile(t, "a@x.io", "25"),
		h.NewProfile(t, "b@x.io", "30"),
		h.NewProfile(t, "c@x.io", "20"),
	)

	var once sync.Once
	h.Listener.SetHook(func(ctx context.Context, p domain.Progress) {
		if p.ItemID == 0 {
			return
		}
		once.Do(func() {
			_, err := h.Service.PauseBatch(ctx, batch.ID.String())
			assert.NoError(t, err)
		})
	})

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusPaused, result.Status)
	assert.Equal(t, 1, result.Attempted)

	paused := h.Batch(t, batch.ID)
	assert.Equal(t, domain.BatchStatusPaused, paused.Status)
	assert.Nil(t, paused.DriverID)
	assert.Equal(t, int64(1), h.CountPayrolls(t, batch.ID))

	_, err = h.Service.PauseBatch(ctx, batch.ID.String())
	assert.ErrorIs(t, err, domain.ErrBatchNotPausable)

	h.Listener.SetHook(nil)
	result, err = h.Service.ResumeBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, result.Status)
	assert.Equal(t, 3, result.Attempted)
	assertDecimal(t, "2700", result.TotalAmount)
	assert.Equal(t, int64(3), h.CountPayrolls(t, batch.ID))

	_, err = h.Service.ResumeBatch(ctx, batch.ID.String())
	assert.ErrorIs(t, err, domain.ErrBatchNotResumable)
}

func TestCancelledRunParksBatchAsPaused(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	batch := h.NewBatch(t, "Cancellable",
		h.NewProfile(t, "a@x.io", "25"),
		h.NewProfile(t, "b@x.io", "30"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Listener.SetHook(func(_ context.Context, p domain.Progress) {
		if p.ItemID != 0 {
			cancel()
		}
	})

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.BatchStatusPaused, result.Status)
	assert.Equal(t, 1, result.Attempted)

	h.Listener.SetHook(nil)
	result, err = h.Service.ResumeBatch(context.Background(), batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, int64(2), h.CountPayrolls(t, batch.ID))
}

func TestStartBatchReusesExistingPayroll(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	a := h.NewProfile(t, "a@x.io", "25")
	b := h.NewProfile(t, "b@x.io", "30")
	batch := h.NewBatch(t, "Rerun", a, b)

	existing, created, err := h.Payroll.Record(ctx, nil, payrolldomain.RecordRequest{
		ProfileID:      a.ID,
		BulkPayrollID:  batch.ID,
		IdempotencyKey: payrolldomain.IdempotencyKey(batch.ID, a.ID),
		PayPeriodStart: bulkpayrolltest.PeriodStart,
		PayPeriodEnd:   bulkpayrolltest.PeriodEnd,
		TotalHours:     decimal.NewFromInt(40),
		HourlyRate:     decimal.NewFromInt(25),
		GrossPay:       decimal.NewFromInt(1000),
		Deductions:     decimal.NewFromInt(100),
		NetPay:         decimal.NewFromInt(900),
	})
	require.NoError(t, err)
	require.True(t, created)

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, result.Status)
	assertDecimal(t, "1980", result.TotalAmount)
	assert.Equal(t, int64(2), h.CountPayrolls(t, batch.ID))

	items, err := h.Service.ListItems(ctx, batch.ID.String())
	require.NoError(t, err)
	for _, item := range items {
		if item.ProfileID == a.ID {
			require.NotNil(t, item.PayrollID)
			assert.Equal(t, existing.ID, *item.PayrollID)
		}
	}
}

func TestStartBatchUsesApprovedHours(t *testing.T) {
	policy := config.DefaultPayrollPolicy()
	h := bulkpayrolltest.New(t, policy)
	ctx := context.Background()
	a := h.NewProfile(t, "a@x.io", "")

	for _, d := range []int{5, 6, 7} {
		entry, err := h.WorkingHours.Create(ctx, workinghoursdomain.CreateRequest{
			ProfileID:  a.ID.String(),
			WorkDate:   bulkpayrolltest.PeriodStart.AddDate(0, 0, d),
			TotalHours: decimal.NewFromInt(8),
		})
		require.NoError(t, err)
		if d != 7 {
			_, err = h.WorkingHours.Approve(ctx, entry.ID.String())
			require.NoError(t, err)
		}
	}
	batch := h.NewBatch(t, "Approved", a)

	result, err := h.Service.StartBatch(ctx, batch.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, result.Status)
	// 16 approved hours at the default 25/h less 10%.
	assertDecimal(t, "360", result.TotalAmount)

	payrolls, err := h.Payroll.List(ctx, payrolldomain.ListRequest{ProfileID: a.ID.String()})
	require.NoError(t, err)
	require.Len(t, payrolls.Payrolls, 1)
	assertDecimal(t, "16", payrolls.Payrolls[0].TotalHours)
	assertDecimal(t, "25", payrolls.Payrolls[0].HourlyRate)
}

func TestListBatchesFiltersByStatus(t *testing.T) {
	h := bulkpayrolltest.New(t, bulkpayrolltest.FixedHoursPolicy())
	ctx := context.Background()
	a := h.NewProfile(t, "a@x.io", "25")
	done := h.NewBatch(t, "Done", a)
	h.NewBatch(t, "Draft", a)
	_, err := h.Service.StartBatch(ctx, done.ID.String())
	require.NoError(t, err)

	list, err := h.Service.ListBatches(ctx, domain.ListBatchRequest{Status: "completed"})
	require.NoError(t, err)
	require.Len(t, list.Batches, 1)
	assert.Equal(t, done.ID, list.Batches[0].ID)

	_, err = h.Service.ListBatches(ctx, domain.ListBatchRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = h.Service.GetBatch(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.Service.GetBatch(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
