// Package bulkpayrolltest wires the pay-run pipeline against an in-memory store for tests.
package bulkpayrolltest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	auditrepo "github.com/smallbiznis/workforce/internal/audit/repository"
	auditsvc "github.com/smallbiznis/workforce/internal/audit/service"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/repository"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/service"
	"github.com/smallbiznis/workforce/internal/clock"
	"github.com/smallbiznis/workforce/internal/config"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	employeerepo "github.com/smallbiznis/workforce/internal/employee/repository"
	employeesvc "github.com/smallbiznis/workforce/internal/employee/service"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	payrollrepo "github.com/smallbiznis/workforce/internal/payroll/repository"
	payrollsvc "github.com/smallbiznis/workforce/internal/payroll/service"
	"github.com/smallbiznis/workforce/internal/testutil"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	workinghoursrepo "github.com/smallbiznis/workforce/internal/workinghours/repository"
	workinghourssvc "github.com/smallbiznis/workforce/internal/workinghours/service"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var (
	PeriodStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	PeriodEnd   = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
)

// Listener records progress events and runs an optional hook for each one.
type Listener struct {
	mu     sync.Mutex
	events []domain.Progress
	hook   func(context.Context, domain.Progress)
}

func (l *Listener) OnProgress(ctx context.Context, progress domain.Progress) {
	l.mu.Lock()
	l.events = append(l.events, progress)
	hook := l.hook
	l.mu.Unlock()
	if hook != nil {
		hook(ctx, progress)
	}
}

// SetHook replaces the per-event hook; pass nil to clear it.
func (l *Listener) SetHook(hook func(context.Context, domain.Progress)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = hook
}

func (l *Listener) Events() []domain.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Progress(nil), l.events...)
}

type Harness struct {
	DB           *gorm.DB
	Node         *snowflake.Node
	Clock        *clock.FakeClock
	Policy       *config.PayrollPolicyHolder
	Repo         domain.Repository
	Employees    employeedomain.Service
	WorkingHours workinghoursdomain.Service
	Payroll      payrolldomain.Service
	Audit        auditdomain.Service
	Listener     *Listener
	Service      domain.Service
}

// FixedHoursPolicy pays every employee 40 hours, keeping amounts whole in tests.
func FixedHoursPolicy() config.PayrollPolicy {
	policy := config.DefaultPayrollPolicy()
	policy.HoursSource = config.HoursSourceFixed
	return policy
}

func New(t testing.TB, policy config.PayrollPolicy) *Harness {
	t.Helper()
	return NewWithRepository(t, policy, nil)
}

// NewWithRepository lets a test decorate the batch repository the service uses,
// e.g. to fail one call. Harness.Repo stays the undecorated repository.
func NewWithRepository(t testing.TB, policy config.PayrollPolicy, wrap func(domain.Repository) domain.Repository) *Harness {
	t.Helper()
	db := testutil.OpenSQLite(t)
	node := testutil.Node(t)
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC))
	holder := config.NewStaticPayrollPolicyHolder(policy)

	audit := auditsvc.NewService(auditsvc.Params{DB: db, Log: log, GenID: node, Repo: auditrepo.Provide(), Clock: clk})
	employees := employeesvc.New(employeesvc.Params{DB: db, Log: log, GenID: node, Repo: employeerepo.Provide(), Clock: clk})
	workingHours := workinghourssvc.New(workinghourssvc.Params{
		DB: db, Log: log, GenID: node, Repo: workinghoursrepo.Provide(), EmployeeSvc: employees, Clock: clk,
	})
	payroll := payrollsvc.New(payrollsvc.Params{
		DB: db, Log: log, GenID: node, Repo: payrollrepo.Provide(), EmployeeSvc: employees, WorkingHoursSvc: workingHours, Clock: clk,
	})
	listener := &Listener{}
	repo := repository.Provide()
	serviceRepo := repo
	if wrap != nil {
		serviceRepo = wrap(repo)
	}
	svc := service.New(service.Params{
		DB:              db,
		Log:             log,
		GenID:           node,
		Repo:            serviceRepo,
		EmployeeSvc:     employees,
		WorkingHoursSvc: workingHours,
		PayrollSvc:      payroll,
		Policy:          holder,
		AuditSvc:        audit,
		Listener:        listener,
		Clock:           clk,
	})

	return &Harness{
		DB:           db,
		Node:         node,
		Clock:        clk,
		Policy:       holder,
		Repo:         repo,
		Employees:    employees,
		WorkingHours: workingHours,
		Payroll:      payroll,
		Audit:        audit,
		Listener:     listener,
		Service:      svc,
	}
}

// NewProfile creates an employee; an empty rate leaves the policy default in effect.
func (h *Harness) NewProfile(t testing.TB, email, rate string) employeedomain.Profile {
	t.Helper()
	req := employeedomain.CreateProfileRequest{FullName: email, Email: email}
	if rate != "" {
		value := decimal.RequireFromString(rate)
		req.HourlyRate = &value
	}
	profile, err := h.Employees.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return profile
}

// NewBatch creates a draft batch over the given profiles for the default period.
func (h *Harness) NewBatch(t testing.TB, name string, profiles ...employeedomain.Profile) domain.Batch {
	t.Helper()
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID.String())
	}
	batch, err := h.Service.CreateBatch(context.Background(), domain.CreateBatchRequest{
		Name:           name,
		PayPeriodStart: PeriodStart,
		PayPeriodEnd:   PeriodEnd,
		EmployeeIDs:    ids,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return batch
}

// ClaimAs marks a draft batch as processing under driverID without driving it,
// as a crashed driver would leave it.
func (h *Harness) ClaimAs(t testing.TB, batchID snowflake.ID, driverID string, leaseUntil time.Time) {
	t.Helper()
	affected, err := h.Repo.ClaimDraft(context.Background(), h.DB, batchID, driverID, leaseUntil, h.Clock.Now())
	if err != nil || affected != 1 {
		t.Fatalf("claim batch: affected=%d err=%v", affected, err)
	}
}

func (h *Harness) CountPayrolls(t testing.TB, batchID snowflake.ID) int64 {
	t.Helper()
	var n int64
	if err := h.DB.Raw(`SELECT COUNT(*) FROM payroll WHERE bulk_payroll_id = ?`, batchID).Scan(&n).Error; err != nil {
		t.Fatalf("count payrolls: %v", err)
	}
	return n
}

func (h *Harness) Batch(t testing.TB, batchID snowflake.ID) domain.Batch {
	t.Helper()
	batch, err := h.Service.GetBatch(context.Background(), batchID.String())
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	return batch
}
