package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"github.com/smallbiznis/workforce/internal/clock"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/workinghours/domain"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var maxShiftHours = decimal.NewFromInt(24)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	EmployeeSvc employeedomain.Service
	AuditSvc    auditdomain.Service `optional:"true"`
	Clock       clock.Clock         `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	employeeSvc employeedomain.Service
	auditSvc    auditdomain.Service
	clock       clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("workinghours.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		employeeSvc: p.EmployeeSvc,
		auditSvc:    p.AuditSvc,
		clock:       clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.WorkingHour, error) {
	profile, err := s.employeeSvc.GetByID(ctx, req.ProfileID)
	if err != nil {
		if errors.Is(err, employeedomain.ErrNotFound) || errors.Is(err, employeedomain.ErrInvalidID) {
			return domain.WorkingHour{}, domain.ErrInvalidProfile
		}
		return domain.WorkingHour{}, err
	}
	if req.WorkDate.IsZero() {
		return domain.WorkingHour{}, domain.ErrInvalidDate
	}
	if !req.TotalHours.IsPositive() || req.TotalHours.GreaterThan(maxShiftHours) || req.OvertimeHours.IsNegative() {
		return domain.WorkingHour{}, domain.ErrInvalidHours
	}
	clientID, err := optionalID(req.ClientID)
	if err != nil {
		return domain.WorkingHour{}, err
	}
	projectID, err := optionalID(req.ProjectID)
	if err != nil {
		return domain.WorkingHour{}, err
	}

	now := s.clock.Now()
	entry := domain.WorkingHour{
		ID:            s.genID.Generate(),
		ProfileID:     profile.ID,
		ClientID:      clientID,
		ProjectID:     projectID,
		WorkDate:      DateOnly(req.WorkDate),
		StartTime:     optionalString(req.StartTime),
		EndTime:       optionalString(req.EndTime),
		TotalHours:    req.TotalHours.Round(2),
		OvertimeHours: req.OvertimeHours.Round(2),
		Status:        domain.StatusPending,
		Notes:         optionalString(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		return domain.WorkingHour{}, err
	}
	return entry, nil
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
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		switch domain.Status(status) {
		case domain.StatusPending, domain.StatusApproved, domain.StatusRejected, domain.StatusPaid:
			filter.Status = domain.Status(status)
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}
	if req.From != nil {
		from := DateOnly(*req.From)
		filter.From = &from
	}
	if req.To != nil {
		to := DateOnly(*req.To)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return domain.ListResponse{}, domain.ErrInvalidRange
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
	items, pageInfo := pagination.Trim(items, filter.Limit, func(w *domain.WorkingHour) string { return w.ID.String() })

	out := make([]domain.WorkingHour, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return domain.ListResponse{PageInfo: pageInfo, WorkingHours: out}, nil
}

func (s *Service) Approve(ctx context.Context, id string) (domain.WorkingHour, error) {
	return s.transition(ctx, id, domain.StatusApproved, auditdomain.ActionWorkingHoursApproved)
}

func (s *Service) Reject(ctx context.Context, id string) (domain.WorkingHour, error) {
	return s.transition(ctx, id, domain.StatusRejected, auditdomain.ActionWorkingHoursRejected)
}

func (s *Service) transition(ctx context.Context, rawID string, to domain.Status, action string) (domain.WorkingHour, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.WorkingHour{}, err
	}

	affected, err := s.repo.TransitionStatus(ctx, s.db, id, domain.StatusPending, to, s.clock.Now())
	if err != nil {
		return domain.WorkingHour{}, err
	}
	entry, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.WorkingHour{}, err
	}
	if entry == nil {
		return domain.WorkingHour{}, domain.ErrNotFound
	}
	if affected == 0 {
		return domain.WorkingHour{}, domain.ErrNotPending
	}

	if s.auditSvc != nil {
		_ = s.auditSvc.AuditLog(ctx, action, "working_hours", entry.ID.String(), map[string]any{
			"profile_id": entry.ProfileID.String(),
			"hours":      entry.Hours().String(),
		})
	}
	return *entry, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	affected, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	entry, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return domain.ErrNotFound
	}
	return domain.ErrAlreadyPaid
}

func (s *Service) ApprovedHours(ctx context.Context, profileID snowflake.ID, start, end time.Time) (decimal.Decimal, error) {
	entries, err := s.repo.ListApproved(ctx, s.db, profileID, DateOnly(start), DateOnly(end))
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, entry := range entries {
		total = total.Add(entry.Hours())
	}
	return total, nil
}

// MarkPaid flips the approved entries of the period to paid using the caller's transaction.
func (s *Service) MarkPaid(ctx context.Context, tx *gorm.DB, profileID snowflake.ID, start, end time.Time) error {
	if tx == nil {
		tx = s.db
	}
	affected, err := s.repo.MarkPaid(ctx, tx, profileID, DateOnly(start), DateOnly(end), s.clock.Now())
	if err != nil {
		return err
	}
	s.log.Debug("working hours marked paid", zap.String("profile_id", profileID.String()), zap.Int64("entries", affected))
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func optionalID(value string) (*snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseID(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
