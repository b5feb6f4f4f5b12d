package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/clock"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	employeerepo "github.com/smallbiznis/workforce/internal/employee/repository"
	employeesvc "github.com/smallbiznis/workforce/internal/employee/service"
	"github.com/smallbiznis/workforce/internal/testutil"
	"github.com/smallbiznis/workforce/internal/workinghours/domain"
	"github.com/smallbiznis/workforce/internal/workinghours/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	svc       domain.Service
	employees employeedomain.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node := testutil.Node(t)
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC))

	employees := employeesvc.New(employeesvc.Params{
		DB: db, Log: log, GenID: node, Repo: employeerepo.Provide(), Clock: clk,
	})
	svc := New(Params{
		DB: db, Log: log, GenID: node, Repo: repository.Provide(), EmployeeSvc: employees, Clock: clk,
	})
	return fixture{db: db, svc: svc, employees: employees}
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func (f fixture) profile(t *testing.T, email string) employeedomain.Profile {
	t.Helper()
	p, err := f.employees.Create(context.Background(), employeedomain.CreateProfileRequest{FullName: email, Email: email})
	require.NoError(t, err)
	return p
}

func (f fixture) log(t *testing.T, profileID string, date time.Time, hours, overtime string) domain.WorkingHour {
	t.Helper()
	entry, err := f.svc.Create(context.Background(), domain.CreateRequest{
		ProfileID:     profileID,
		WorkDate:      date,
		TotalHours:    decimal.RequireFromString(hours),
		OvertimeHours: decimal.RequireFromString(overtime),
	})
	require.NoError(t, err)
	return entry
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	p := f.profile(t, "a@x.io")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateRequest{ProfileID: "123", WorkDate: day(2), TotalHours: decimal.NewFromInt(8)})
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	_, err = f.svc.Create(ctx, domain.CreateRequest{ProfileID: p.ID.String(), TotalHours: decimal.NewFromInt(8)})
	assert.ErrorIs(t, err, domain.ErrInvalidDate)

	_, err = f.svc.Create(ctx, domain.CreateRequest{ProfileID: p.ID.String(), WorkDate: day(2)})
	assert.ErrorIs(t, err, domain.ErrInvalidHours)

	_, err = f.svc.Create(ctx, domain.CreateRequest{ProfileID: p.ID.String(), WorkDate: day(2), TotalHours: decimal.NewFromInt(25)})
	assert.ErrorIs(t, err, domain.ErrInvalidHours)

	_, err = f.svc.Create(ctx, domain.CreateRequest{ProfileID: p.ID.String(), WorkDate: day(2), TotalHours: decimal.NewFromInt(8), ClientID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestApproveRejectTransitions(t *testing.T) {
	f := setup(t)
	p := f.profile(t, "a@x.io")
	ctx := context.Background()

	e1 := f.log(t, p.ID.String(), day(5), "8", "0")
	e2 := f.log(t, p.ID.String(), day(6), "8", "0")

	approved, err := f.svc.Approve(ctx, e1.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)

	_, err = f.svc.Approve(ctx, e1.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPending)
	_, err = f.svc.Reject(ctx, e1.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotPending)

	rejected, err := f.svc.Reject(ctx, e2.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = f.svc.Approve(ctx, "1234")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApprovedHoursSumsOnlyApprovedWithinPeriod(t *testing.T) {
	f := setup(t)
	p := f.profile(t, "a@x.io")
	other := f.profile(t, "b@x.io")
	ctx := context.Background()

	in1 := f.log(t, p.ID.String(), day(1), "8", "1.5")
	in2 := f.log(t, p.ID.String(), day(15), "7.25", "0")
	pending := f.log(t, p.ID.String(), day(16), "8", "0")
	outside := f.log(t, p.ID.String(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "8", "0")
	otherEntry := f.log(t, other.ID.String(), day(2), "8", "0")
	_ = pending

	for _, e := range []domain.WorkingHour{in1, in2, outside, otherEntry} {
		_, err := f.svc.Approve(ctx, e.ID.String())
		require.NoError(t, err)
	}

	total, err := f.svc.ApprovedHours(ctx, p.ID, day(1), time.Date(2026, 1, 31, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("16.75")), "got %s", total)

	none, err := f.svc.ApprovedHours(ctx, p.ID, day(20), day(25))
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestMarkPaidAndDelete(t *testing.T) {
	f := setup(t)
	p := f.profile(t, "a@x.io")
	ctx := context.Background()

	paid := f.log(t, p.ID.String(), day(3), "8", "0")
	open := f.log(t, p.ID.String(), day(4), "8", "0")
	_, err := f.svc.Approve(ctx, paid.ID.String())
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkPaid(ctx, nil, p.ID, day(1), day(31)))

	resp, err := f.svc.List(ctx, domain.ListRequest{ProfileID: p.ID.String(), Status: "paid"})
	require.NoError(t, err)
	require.Len(t, resp.WorkingHours, 1)
	assert.Equal(t, paid.ID, resp.WorkingHours[0].ID)

	assert.ErrorIs(t, f.svc.Delete(ctx, paid.ID.String()), domain.ErrAlreadyPaid)
	require.NoError(t, f.svc.Delete(ctx, open.ID.String()))
	assert.ErrorIs(t, f.svc.Delete(ctx, open.ID.String()), domain.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	p := f.profile(t, "a@x.io")
	ctx := context.Background()

	f.log(t, p.ID.String(), day(3), "8", "0")
	f.log(t, p.ID.String(), day(10), "8", "0")

	from, to := day(5), day(12)
	resp, err := f.svc.List(ctx, domain.ListRequest{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, resp.WorkingHours, 1)

	_, err = f.svc.List(ctx, domain.ListRequest{From: &to, To: &from})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = f.svc.List(ctx, domain.ListRequest{Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
