package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/guard"
	"github.com/smallbiznis/workforce/internal/clock"
	"github.com/smallbiznis/workforce/internal/config"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	obslogger "github.com/smallbiznis/workforce/internal/observability/logger"
	"github.com/smallbiznis/workforce/internal/observability/metrics"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	workinghoursdomain "github.com/smallbiznis/workforce/internal/workinghours/domain"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("workforce/bulkpayroll")

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Repo            domain.Repository
	EmployeeSvc     employeedomain.Service
	WorkingHoursSvc workinghoursdomain.Service
	PayrollSvc      payrolldomain.Service
	Policy          *config.PayrollPolicyHolder
	AuditSvc        auditdomain.Service     `optional:"true"`
	Listener        domain.ProgressListener `optional:"true"`
	Metrics         *metrics.Metrics        `optional:"true"`
	PayrunMetrics   *metrics.PayrunMetrics  `optional:"true"`
	Clock           clock.Clock             `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	employeeSvc     employeedomain.Service
	workingHoursSvc workinghoursdomain.Service
	payrollSvc      payrolldomain.Service
	policy          *config.PayrollPolicyHolder
	auditSvc        auditdomain.Service
	listener        domain.ProgressListener
	metrics         *metrics.Metrics
	payrunMetrics   *metrics.PayrunMetrics
	clock           clock.Clock
	driverPrefix    string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticPayrollPolicyHolder(config.DefaultPayrollPolicy())
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "workforce"
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("bulkpayroll.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		employeeSvc:     p.EmployeeSvc,
		workingHoursSvc: p.WorkingHoursSvc,
		payrollSvc:      p.PayrollSvc,
		policy:          policy,
		auditSvc:        p.AuditSvc,
		listener:        p.Listener,
		metrics:         p.Metrics,
		payrunMetrics:   p.PayrunMetrics,
		clock:           clk,
		driverPrefix:    fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

func (s *Service) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (domain.Batch, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Batch{}, domain.ErrInvalidName
	}
	if req.PayPeriodStart.IsZero() || req.PayPeriodEnd.IsZero() {
		return domain.Batch{}, domain.ErrInvalidPayPeriod
	}
	start, end := dateOnly(req.PayPeriodStart), dateOnly(req.PayPeriodEnd)
	if start.After(end) {
		return domain.Batch{}, domain.ErrInvalidPayPeriod
	}
	profileIDs, err := parseEmployeeIDs(req.EmployeeIDs)
	if err != nil {
		return domain.Batch{}, err
	}

	now := s.clock.Now()
	batch := domain.Batch{
		ID:             s.genID.Generate(),
		Reference:      slug.Make(name) + "-" + start.Format("20060102"),
		Name:           name,
		Description:    optionalString(req.Description),
		PayPeriodStart: start,
		PayPeriodEnd:   end,
		Status:         domain.BatchStatusDraft,
		TotalRecords:   len(profileIDs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		batch.CreatedBy = &actor.ID
	}

	items := make([]domain.Item, 0, len(profileIDs))
	for _, profileID := range profileIDs {
		items = append(items, domain.Item{
			ID:            s.genID.Generate(),
			BulkPayrollID: batch.ID,
			ProfileID:     profileID,
			Status:        domain.ItemStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertBatch(ctx, tx, &batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return fmt.Errorf("insert batch items: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.logger(ctx, batch.ID).Info("bulk_payroll.created",
		zap.String("reference", batch.Reference),
		zap.Int("total_records", batch.TotalRecords),
	)
	s.audit(ctx, auditdomain.ActionBulkPayrollCreated, batch, map[string]any{
		"reference":     batch.Reference,
		"total_records": batch.TotalRecords,
		"period_start":  batch.PayPeriodStart.Format(time.DateOnly),
		"period_end":    batch.PayPeriodEnd.Format(time.DateOnly),
	})
	s.publish(ctx, batch, nil)
	return batch, nil
}

func (s *Service) StartBatch(ctx context.Context, rawID string) (domain.RunResult, error) {
	batch, err := s.load(ctx, rawID)
	if err != nil {
		return domain.RunResult{}, err
	}
	if err := guard.EnsureBatchCanStart(batch.Status); err != nil {
		return resultFrom(batch, "batch is "+string(batch.Status)), err
	}

	count, err := s.repo.CountItems(ctx, s.db, batch.ID)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("count batch items: %w", err)
	}
	if count == 0 {
		return s.failEmpty(ctx, batch)
	}

	now := s.clock.Now()
	driverID := s.newDriverID()
	affected, err := s.repo.ClaimDraft(ctx, s.db, batch.ID, driverID, now.Add(s.leaseTTL()), now)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("claim batch: %w", err)
	}
	if affected == 0 {
		return resultFrom(batch, "batch already claimed"), domain.ErrBatchNotStartable
	}

	s.transitioned(domain.BatchStatusDraft, domain.BatchStatusProcessing)
	s.audit(ctx, auditdomain.ActionBulkPayrollStarted, batch, map[string]any{"driver_id": driverID})
	return s.drive(ctx, batch.ID, driverID)
}

func (s *Service) PauseBatch(ctx context.Context, rawID string) (domain.Batch, error) {
	batch, err := s.load(ctx, rawID)
	if err != nil {
		return domain.Batch{}, err
	}
	if err := guard.EnsureBatchCanPause(batch.Status); err != nil {
		return batch, err
	}

	affected, err := s.repo.Pause(ctx, s.db, batch.ID, s.clock.Now())
	if err != nil {
		return domain.Batch{}, fmt.Errorf("pause batch: %w", err)
	}
	if affected == 0 {
		return batch, domain.ErrBatchNotPausable
	}

	paused, err := s.reload(ctx, batch.ID)
	if err != nil {
		return domain.Batch{}, err
	}
	s.transitioned(domain.BatchStatusProcessing, domain.BatchStatusPaused)
	s.audit(ctx, auditdomain.ActionBulkPayrollPaused, paused, map[string]any{
		"processed_records": paused.ProcessedRecords,
	})
	s.publish(ctx, paused, nil)
	return paused, nil
}

func (s *Service) ResumeBatch(ctx context.Context, rawID string) (domain.RunResult, error) {
	batch, err := s.load(ctx, rawID)
	if err != nil {
		return domain.RunResult{}, err
	}
	if err := guard.EnsureBatchCanResume(batch.Status); err != nil {
		return resultFrom(batch, "batch is "+string(batch.Status)), err
	}

	now := s.clock.Now()
	driverID := s.newDriverID()
	affected, err := s.repo.ClaimPaused(ctx, s.db, batch.ID, driverID, now.Add(s.leaseTTL()), now)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("resume batch: %w", err)
	}
	if affected == 0 {
		return resultFrom(batch, "batch already resumed"), domain.ErrBatchNotResumable
	}

	s.transitioned(domain.BatchStatusPaused, domain.BatchStatusProcessing)
	s.audit(ctx, auditdomain.ActionBulkPayrollResumed, batch, map[string]any{
		"driver_id":    driverID,
		"last_item_id": batch.LastItemID.String(),
	})
	return s.drive(ctx, batch.ID, driverID)
}

func (s *Service) RecoverBatch(ctx context.Context, batch domain.Batch) (domain.RunResult, error) {
	now := s.clock.Now()
	if err := guard.EnsureLeaseExpired(batch, now); err != nil {
		return resultFrom(batch, "lease still held"), err
	}

	previous := ""
	if batch.DriverID != nil {
		previous = *batch.DriverID
	}
	driverID := s.newDriverID()
	affected, err := s.repo.TakeOver(ctx, s.db, batch.ID, previous, driverID, now.Add(s.leaseTTL()), now)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("take over batch: %w", err)
	}
	if affected == 0 {
		s.payrunMetrics.IncRecovery("lost_race")
		return resultFrom(batch, "batch taken over elsewhere"), domain.ErrBatchNotRecoverable
	}

	s.payrunMetrics.IncRecovery("taken_over")
	s.logger(ctx, batch.ID).Info("bulk_payroll.recovered",
		zap.String("previous_driver", previous),
		zap.String("driver_id", driverID),
	)
	s.audit(ctx, auditdomain.ActionBulkPayrollRecovered, batch, map[string]any{
		"previous_driver": previous,
		"driver_id":       driverID,
	})
	return s.drive(ctx, batch.ID, driverID)
}

func (s *Service) ListExpired(ctx context.Context, limit int) ([]domain.Batch, error) {
	if limit <= 0 {
		limit = 10
	}
	batches, err := s.repo.ListExpired(ctx, s.db, s.clock.Now(), limit)
	if err != nil {
		return nil, err
	}
	return derefBatches(batches), nil
}

func (s *Service) GetBatch(ctx context.Context, rawID string) (domain.Batch, error) {
	return s.load(ctx, rawID)
}

func (s *Service) ListBatches(ctx context.Context, req domain.ListBatchRequest) (domain.ListBatchResponse, error) {
	filter := domain.ListBatchFilter{Limit: req.Limit()}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" {
		if !domain.BatchStatus(status).Valid() {
			return domain.ListBatchResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = domain.BatchStatus(status)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListBatchResponse{}, domain.ErrInvalidPageToken
		}
		if filter.CursorID, err = parseID(decoded.ID); err != nil {
			return domain.ListBatchResponse{}, domain.ErrInvalidPageToken
		}
	}

	batches, err := s.repo.ListBatches(ctx, s.db, filter)
	if err != nil {
		return domain.ListBatchResponse{}, err
	}
	batches, pageInfo := pagination.Trim(batches, filter.Limit, func(b *domain.Batch) string { return b.ID.String() })
	return domain.ListBatchResponse{PageInfo: pageInfo, Batches: derefBatches(batches)}, nil
}

func (s *Service) ListItems(ctx context.Context, rawID string) ([]domain.Item, error) {
	batch, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, s.db, batch.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *Service) FailureManifest(ctx context.Context, rawID string) ([]domain.FailureRow, error) {
	batch, err := s.load(ctx, rawID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListFailures(ctx, s.db, batch.ID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.FailureRow{}
	}
	return rows, nil
}

func (s *Service) failEmpty(ctx context.Context, batch domain.Batch) (domain.RunResult, error) {
	if err := guard.EnsureTransition(batch.Status, domain.BatchStatusFailed); err != nil {
		return resultFrom(batch, "batch is "+string(batch.Status)), err
	}
	affected, err := s.repo.FailDraft(ctx, s.db, batch.ID, domain.ErrNoItems.Error(), s.clock.Now())
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("fail empty batch: %w", err)
	}
	if affected == 0 {
		return resultFrom(batch, "batch already claimed"), domain.ErrBatchNotStartable
	}
	failed, err := s.reload(ctx, batch.ID)
	if err != nil {
		return domain.RunResult{}, err
	}
	s.transitioned(domain.BatchStatusDraft, domain.BatchStatusFailed)
	s.metrics.RecordBatchRun(ctx, string(domain.BatchStatusFailed))
	s.audit(ctx, auditdomain.ActionBulkPayrollFailed, failed, map[string]any{"reason": domain.ErrNoItems.Error()})
	s.publish(ctx, failed, nil)
	return resultFrom(failed, "batch has no items"), domain.ErrNoItems
}

func (s *Service) load(ctx context.Context, rawID string) (domain.Batch, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Batch{}, err
	}
	return s.reload(ctx, id)
}

func (s *Service) reload(ctx context.Context, id snowflake.ID) (domain.Batch, error) {
	batch, err := s.repo.FindBatch(ctx, s.db, id)
	if err != nil {
		return domain.Batch{}, err
	}
	if batch == nil {
		return domain.Batch{}, domain.ErrNotFound
	}
	return *batch, nil
}

func (s *Service) leaseTTL() time.Duration {
	ttl := s.policy.Get().LeaseTTL
	if ttl <= 0 {
		return config.DefaultPayrollPolicy().LeaseTTL
	}
	return ttl
}

func (s *Service) newDriverID() string {
	return s.driverPrefix + "-" + ulid.Make().String()
}

func (s *Service) logger(ctx context.Context, batchID snowflake.ID) *zap.Logger {
	return obslogger.WithBatch(obslogger.WithContext(ctx, s.log), batchID.String())
}

func (s *Service) transitioned(from, to domain.BatchStatus) {
	s.payrunMetrics.IncBatchTransition(string(from), string(to))
}

func (s *Service) audit(ctx context.Context, action string, batch domain.Batch, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, action, "bulk_payroll", batch.ID.String(), metadata); err != nil {
		s.logger(ctx, batch.ID).Warn("audit bulk payroll", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, batch domain.Batch, item *domain.Item) {
	if s.listener == nil {
		return
	}
	progress := domain.Progress{
		BatchID:     batch.ID,
		Status:      batch.Status,
		Total:       batch.TotalRecords,
		Processed:   batch.ProcessedRecords,
		Succeeded:   batch.SucceededRecords,
		Failed:      batch.FailedRecords,
		TotalAmount: batch.TotalAmount,
		At:          s.clock.Now(),
	}
	if item != nil {
		progress.ItemID = item.ID
		progress.ItemStatus = item.Status
	}
	s.listener.OnProgress(ctx, progress)
}

func resultFrom(batch domain.Batch, message string) domain.RunResult {
	return domain.RunResult{
		BatchID:     batch.ID,
		Status:      batch.Status,
		Attempted:   batch.ProcessedRecords,
		Succeeded:   batch.SucceededRecords,
		Failed:      batch.FailedRecords,
		TotalAmount: batch.TotalAmount,
		Message:     message,
	}
}

func derefBatches(batches []*domain.Batch) []domain.Batch {
	out := make([]domain.Batch, 0, len(batches))
	for _, batch := range batches {
		if batch != nil {
			out = append(out, *batch)
		}
	}
	return out
}

func parseEmployeeIDs(raw []string) ([]snowflake.ID, error) {
	if len(raw) == 0 {
		return nil, domain.ErrEmptyEmployeeSelection
	}
	seen := make(map[snowflake.ID]struct{}, len(raw))
	ids := make([]snowflake.ID, 0, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id <= 0 {
			return nil, domain.ErrInvalidEmployeeID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
