package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/clock"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	employeerepo "github.com/smallbiznis/workforce/internal/employee/repository"
	employeesvc "github.com/smallbiznis/workforce/internal/employee/service"
	"github.com/smallbiznis/workforce/internal/payroll/calculator"
	"github.com/smallbiznis/workforce/internal/payroll/domain"
	"github.com/smallbiznis/workforce/internal/payroll/repository"
	"github.com/smallbiznis/workforce/internal/testutil"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	workinghoursrepo "github.com/smallbiznis/workforce/internal/workinghours/repository"
	workinghourssvc "github.com/smallbiznis/workforce/internal/workinghours/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var (
	periodStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	db           *gorm.DB
	svc          domain.Service
	employees    employeedomain.Service
	workingHours workinghoursdomain.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node := testutil.Node(t)
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))

	employees := employeesvc.New(employeesvc.Params{DB: db, Log: log, GenID: node, Repo: employeerepo.Provide(), Clock: clk})
	workingHours := workinghourssvc.New(workinghourssvc.Params{
		DB: db, Log: log, GenID: node, Repo: workinghoursrepo.Provide(), EmployeeSvc: employees, Clock: clk,
	})
	svc := New(Params{
		DB:              db,
		Log:             log,
		GenID:           node,
		Repo:            repository.Provide(),
		EmployeeSvc:     employees,
		WorkingHoursSvc: workingHours,
		Clock:           clk,
	})
	return fixture{db: db, svc: svc, employees: employees, workingHours: workingHours}
}

func (f fixture) recordRequest(t *testing.T, profile employeedomain.Profile, key string) domain.RecordRequest {
	t.Helper()
	amounts, err := calculator.Compute(decimal.NewFromInt(25), decimal.NewFromInt(40), decimal.RequireFromString("0.10"))
	require.NoError(t, err)
	return domain.RecordRequest{
		ProfileID:      profile.ID,
		IdempotencyKey: key,
		PayPeriodStart: periodStart,
		PayPeriodEnd:   periodEnd,
		TotalHours:     amounts.TotalHours,
		HourlyRate:     amounts.HourlyRate,
		GrossPay:       amounts.GrossPay,
		Deductions:     amounts.Deductions,
		NetPay:         amounts.NetPay,
	}
}

func (f fixture) profile(t *testing.T) employeedomain.Profile {
	t.Helper()
	p, err := f.employees.Create(context.Background(), employeedomain.CreateProfileRequest{FullName: "Ada Lovelace", Email: "ada@x.io"})
	require.NoError(t, err)
	return p
}

func countPayrolls(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM payroll`).Scan(&n).Error)
	return n
}

func TestRecordIsIdempotentByKey(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	profile := f.profile(t)
	req := f.recordRequest(t, profile, "bulk_payroll:1:2")

	var first domain.Payroll
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var created bool
		var err error
		first, created, err = f.svc.Record(ctx, tx, req)
		assert.True(t, created)
		return err
	})
	require.NoError(t, err)

	second, created, err := f.svc.Record(ctx, nil, req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.NetPay.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, int64(1), countPayrolls(t, f.db))
}

func TestRecordWithoutKeyAlwaysInserts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := f.recordRequest(t, f.profile(t), "")

	_, created, err := f.svc.Record(ctx, nil, req)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = f.svc.Record(ctx, nil, req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), countPayrolls(t, f.db))
}

func TestRecordRejectsInconsistentAmounts(t *testing.T) {
	f := setup(t)
	profile := f.profile(t)
	req := f.recordRequest(t, profile, "k")
	req.NetPay = req.NetPay.Add(decimal.NewFromInt(1))

	_, _, err := f.svc.Record(context.Background(), nil, req)
	assert.ErrorIs(t, err, domain.ErrInvalidAmounts)

	req = f.recordRequest(t, profile, "k")
	req.PayPeriodStart, req.PayPeriodEnd = req.PayPeriodEnd, req.PayPeriodStart
	_, _, err = f.svc.Record(context.Background(), nil, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}

func TestApproveAndMarkPaidSettlesWorkingHours(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	profile := f.profile(t)

	entry, err := f.workingHours.Create(ctx, workinghoursdomain.CreateRequest{
		ProfileID:  profile.ID.String(),
		WorkDate:   time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		TotalHours: decimal.NewFromInt(8),
	})
	require.NoError(t, err)
	_, err = f.workingHours.Approve(ctx, entry.ID.String())
	require.NoError(t, err)

	record, _, err := f.svc.Record(ctx, nil, f.recordRequest(t, profile, "k1"))
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, record.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	approved, err := f.svc.Approve(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)

	_, err = f.svc.Approve(ctx, record.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	paid, err := f.svc.MarkPaid(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)

	hours, err := f.workingHours.List(ctx, workinghoursdomain.ListRequest{ProfileID: profile.ID.String(), Status: "paid"})
	require.NoError(t, err)
	assert.Len(t, hours.WorkingHours, 1)

	_, err = f.svc.GetByID(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListFiltersByStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	profile := f.profile(t)

	a, _, err := f.svc.Record(ctx, nil, f.recordRequest(t, profile, "a"))
	require.NoError(t, err)
	_, _, err = f.svc.Record(ctx, nil, f.recordRequest(t, profile, "b"))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, a.ID.String())
	require.NoError(t, err)

	resp, err := f.svc.List(ctx, domain.ListRequest{Status: "approved"})
	require.NoError(t, err)
	require.Len(t, resp.Payrolls, 1)
	assert.Equal(t, a.ID, resp.Payrolls[0].ID)

	all, err := f.svc.List(ctx, domain.ListRequest{ProfileID: profile.ID.String()})
	require.NoError(t, err)
	assert.Len(t, all.Payrolls, 2)

	_, err = f.svc.List(ctx, domain.ListRequest{Status: "void"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestPayslipRendersPDF(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	record, _, err := f.svc.Record(ctx, nil, f.recordRequest(t, f.profile(t), "slip"))
	require.NoError(t, err)

	reader, err := f.svc.Payslip(ctx, record.ID.String())
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}
