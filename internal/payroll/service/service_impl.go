package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"github.com/smallbiznis/workforce/internal/clock"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/observability/metrics"
	"github.com/smallbiznis/workforce/internal/payroll/domain"
	"github.com/smallbiznis/workforce/internal/providers/pdf"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Repo            domain.Repository
	EmployeeSvc     employeedomain.Service
	WorkingHoursSvc workinghoursdomain.Service
	PDF             pdf.Provider        `optional:"true"`
	AuditSvc        auditdomain.Service `optional:"true"`
	Metrics         *metrics.Metrics    `optional:"true"`
	Clock           clock.Clock         `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	employeeSvc     employeedomain.Service
	workingHoursSvc workinghoursdomain.Service
	pdf             pdf.Provider
	auditSvc        auditdomain.Service
	metrics         *metrics.Metrics
	clock           clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	renderer := p.PDF
	if renderer == nil {
		renderer = pdf.New()
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payroll.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		employeeSvc:     p.EmployeeSvc,
		workingHoursSvc: p.WorkingHoursSvc,
		pdf:             renderer,
		auditSvc:        p.AuditSvc,
		metrics:         p.Metrics,
		clock:           clk,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) (domain.Payroll, bool, error) {
	if tx == nil {
		tx = s.db
	}
	if req.ProfileID == 0 {
		return domain.Payroll{}, false, domain.ErrInvalidID
	}
	if req.PayPeriodStart.IsZero() || req.PayPeriodEnd.IsZero() || req.PayPeriodStart.After(req.PayPeriodEnd) {
		return domain.Payroll{}, false, domain.ErrInvalidPeriod
	}
	if !req.NetPay.Equal(req.GrossPay.Sub(req.Deductions)) || req.GrossPay.IsNegative() {
		return domain.Payroll{}, false, domain.ErrInvalidAmounts
	}

	now := s.clock.Now()
	record := domain.Payroll{
		ID:             s.genID.Generate(),
		ProfileID:      req.ProfileID,
		PayPeriodStart: req.PayPeriodStart,
		PayPeriodEnd:   req.PayPeriodEnd,
		TotalHours:     req.TotalHours,
		HourlyRate:     req.HourlyRate,
		GrossPay:       req.GrossPay,
		Deductions:     req.Deductions,
		NetPay:         req.NetPay,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.BulkPayrollID != 0 {
		batchID := req.BulkPayrollID
		record.BulkPayrollID = &batchID
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" {
		record.IdempotencyKey = &key
	}

	created, err := s.repo.InsertIfAbsent(ctx, tx, &record)
	if err != nil {
		return domain.Payroll{}, false, fmt.Errorf("insert payroll: %w", err)
	}
	if created {
		if s.metrics != nil {
			source := "manual"
			if record.BulkPayrollID != nil {
				source = "bulk_payroll"
			}
			s.metrics.RecordPayrollRecord(ctx, source, record.NetPay.InexactFloat64())
		}
		return record, true, nil
	}
	if key == "" {
		return domain.Payroll{}, false, domain.ErrIdempotencyMissing
	}

	existing, err := s.repo.FindByIdempotencyKey(ctx, tx, key)
	if err != nil {
		return domain.Payroll{}, false, fmt.Errorf("load payroll by key: %w", err)
	}
	if existing == nil {
		return domain.Payroll{}, false, domain.ErrIdempotencyMissing
	}
	s.log.Debug("payroll already recorded", zap.String("payroll_id", existing.ID.String()))
	return *existing, false, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Payroll, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Payroll{}, err
	}
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Payroll{}, err
	}
	if record == nil {
		return domain.Payroll{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{Limit: req.Limit()}
	if strings.TrimSpace(req.ProfileID) != "" {
		id, err := parseID(req.ProfileID)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.ProfileID = id
	}
	if strings.TrimSpace(req.BulkPayrollID) != "" {
		id, err := parseID(req.BulkPayrollID)
		if err != nil {
			return domain.ListResponse{}, err
		}
		filter.BulkPayrollID = id
	}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		switch domain.Status(status) {
		case domain.StatusPending, domain.StatusApproved, domain.StatusPaid:
			filter.Status = domain.Status(status)
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		if filter.CursorID, err = parseID(decoded.ID); err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, filter.Limit, func(p *domain.Payroll) string { return p.ID.String() })

	out := make([]domain.Payroll, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return domain.ListResponse{PageInfo: pageInfo, Payrolls: out}, nil
}

func (s *Service) Approve(ctx context.Context, rawID string) (domain.Payroll, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Payroll{}, err
	}
	affected, err := s.repo.TransitionStatus(ctx, s.db, id, domain.StatusPending, domain.StatusApproved, s.clock.Now())
	if err != nil {
		return domain.Payroll{}, err
	}
	record, err := s.loadAfterTransition(ctx, s.db, id, affected)
	if err != nil {
		return domain.Payroll{}, err
	}
	s.audit(ctx, auditdomain.ActionPayrollApproved, record)
	return record, nil
}

// MarkPaid settles an approved payroll and the working hours it paid for in one transaction.
func (s *Service) MarkPaid(ctx context.Context, rawID string) (domain.Payroll, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Payroll{}, err
	}

	var record domain.Payroll
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.TransitionStatus(ctx, tx, id, domain.StatusApproved, domain.StatusPaid, s.clock.Now())
		if err != nil {
			return err
		}
		record, err = s.loadAfterTransition(ctx, tx, id, affected)
		if err != nil {
			return err
		}
		return s.workingHoursSvc.MarkPaid(ctx, tx, record.ProfileID, record.PayPeriodStart, record.PayPeriodEnd)
	})
	if err != nil {
		return domain.Payroll{}, err
	}
	s.audit(ctx, auditdomain.ActionPayrollPaid, record)
	return record, nil
}

func (s *Service) Payslip(ctx context.Context, rawID string) (io.Reader, error) {
	record, err := s.GetByID(ctx, rawID)
	if err != nil {
		return nil, err
	}

	data := pdf.PayslipData{
		PayslipID:   record.ID.String(),
		PeriodStart: record.PayPeriodStart.Format(dateLayout),
		PeriodEnd:   record.PayPeriodEnd.Format(dateLayout),
		Status:      string(record.Status),
		TotalHours:  record.TotalHours.StringFixed(2),
		HourlyRate:  record.HourlyRate.StringFixed(2),
		GrossPay:    record.GrossPay.StringFixed(2),
		Deductions:  record.Deductions.StringFixed(2),
		NetPay:      record.NetPay.StringFixed(2),
		IssuedAt:    s.clock.Now().Format(dateLayout),
	}
	if record.BulkPayrollID != nil {
		data.BatchRef = record.BulkPayrollID.String()
	}
	profile, err := s.employeeSvc.GetByID(ctx, record.ProfileID.String())
	switch {
	case err == nil:
		data.EmployeeName = profile.FullName
		data.EmployeeEmail = profile.Email
	case errors.Is(err, employeedomain.ErrNotFound):
		data.EmployeeName = "Former employee"
	default:
		return nil, err
	}

	return s.pdf.GeneratePayslip(ctx, data)
}

func (s *Service) loadAfterTransition(ctx context.Context, db *gorm.DB, id snowflake.ID, affected int64) (domain.Payroll, error) {
	record, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return domain.Payroll{}, err
	}
	if record == nil {
		return domain.Payroll{}, domain.ErrNotFound
	}
	if affected == 0 {
		return domain.Payroll{}, domain.ErrInvalidTransition
	}
	return *record, nil
}

func (s *Service) audit(ctx context.Context, action string, record domain.Payroll) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, action, "payroll", record.ID.String(), map[string]any{
		"profile_id": record.ProfileID.String(),
		"net_pay":    record.NetPay.StringFixed(2),
		"period":     record.PayPeriodStart.Format(dateLayout) + ".." + record.PayPeriodEnd.Format(dateLayout),
	}); err != nil {
		s.log.Warn("audit payroll transition", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
