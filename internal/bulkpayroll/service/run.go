package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/guard"
	"github.com/smallbiznis/workforce/internal/config"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/observability/metrics"
	"github.com/smallbiznis/workforce/internal/observability/tracing"
	"github.com/smallbiznis/workforce/internal/payroll/calculator"
	payrolldomain "github.com/smallbiznis/workforce/internal/payroll/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxErrorMessageLen = 500

// itemFailure is an item-scope error; it is recorded on the item and never stops the run.
type itemFailure struct {
	code  string
	cause error
}

func (f *itemFailure) Error() string { return f.code + ": " + f.cause.Error() }
func (f *itemFailure) Unwrap() error { return f.cause }

// drive processes the pending items of a batch owned by driverID, one at a time in id order,
// until none remain, the batch leaves processing, or another driver takes it over.
func (s *Service) drive(ctx context.Context, batchID snowflake.ID, driverID string) (domain.RunResult, error) {
	ctx, span := tracer.Start(ctx, "bulkpayroll.drive", trace.WithAttributes(
		tracing.SafeAttributes(
			attribute.String("batch_id", batchID.String()),
			attribute.String("driver_id", driverID),
		)...,
	))
	defer span.End()

	started := s.clock.Now()
	log := s.logger(ctx, batchID).With(zap.String("driver_id", driverID))
	log.Info("bulk_payroll.run.start")

	for {
		if err := ctx.Err(); err != nil {
			return s.interrupt(ctx, batchID, driverID, err)
		}

		batch, err := s.reload(ctx, batchID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.RunResult{}, err
			}
			return s.abort(ctx, batchID, driverID, fmt.Errorf("reload batch: %w", err))
		}
		if batch.Status != domain.BatchStatusProcessing || !batch.OwnedBy(driverID) {
			log.Info("bulk_payroll.run.stopped", zap.String("status", string(batch.Status)))
			return resultFrom(batch, "driver stopped, batch is "+string(batch.Status)), nil
		}

		item, err := s.repo.NextPendingItem(ctx, s.db, batch.ID, batch.LastItemID)
		if err != nil {
			if ctx.Err() != nil {
				return s.interrupt(ctx, batchID, driverID, ctx.Err())
			}
			return s.abort(ctx, batchID, driverID, fmt.Errorf("load next item: %w", err))
		}
		if item == nil {
			result, err := s.finish(ctx, batch, driverID, started)
			span.SetAttributes(attribute.String("status", string(result.Status)))
			return result, err
		}

		if err := s.processItem(ctx, batch, *item, driverID); err != nil {
			switch {
			case errors.Is(err, domain.ErrLeaseLost):
				log.Warn("bulk_payroll.run.lease_lost", zap.String("item_id", item.ID.String()))
				current, reloadErr := s.reload(context.WithoutCancel(ctx), batchID)
				if reloadErr != nil {
					return domain.RunResult{}, errors.Join(err, reloadErr)
				}
				return resultFrom(current, "driver lost ownership of the batch"), nil
			case ctx.Err() != nil:
				return s.interrupt(ctx, batchID, driverID, ctx.Err())
			default:
				span.RecordError(tracing.SafeError(err))
				span.SetStatus(codes.Error, "batch failed")
				return s.abort(ctx, batchID, driverID, err)
			}
		}
	}
}

// processItem computes and commits one item. Only batch-scope errors are returned.
func (s *Service) processItem(ctx context.Context, batch domain.Batch, item domain.Item, driverID string) error {
	ctx, span := tracer.Start(ctx, "bulkpayroll.process_item", trace.WithAttributes(
		attribute.String("batch_id", batch.ID.String()),
		attribute.String("item_id", item.ID.String()),
	))
	defer span.End()
	started := time.Now()
	defer func() { s.payrunMetrics.ObserveItemDuration(time.Since(started)) }()

	amounts, failure := s.computePay(ctx, batch, item)
	if failure == nil {
		net, err := s.commitSuccess(ctx, batch, item, driverID, amounts)
		if err == nil {
			item.Status = domain.ItemStatusProcessed
			batch.ProcessedRecords++
			batch.SucceededRecords++
			batch.TotalAmount = batch.TotalAmount.Add(net)
			s.payrunMetrics.IncItemOutcome(metrics.ItemOutcomeProcessed, "")
			s.publish(ctx, batch, &item)
			return nil
		}
		if errors.Is(err, domain.ErrLeaseLost) || ctx.Err() != nil {
			return err
		}
		failure = &itemFailure{code: domain.ErrorCodePersistence, cause: err}
	}

	if err := s.commitFailure(ctx, batch, item, driverID, failure); err != nil {
		if errors.Is(err, domain.ErrLeaseLost) {
			return err
		}
		return fmt.Errorf("record item failure: %w", err)
	}
	span.SetStatus(codes.Error, failure.code)
	s.logger(ctx, batch.ID).Warn("bulk_payroll.item.failed",
		zap.String("item_id", item.ID.String()),
		zap.String("profile_id", item.ProfileID.String()),
		zap.String("error_code", failure.code),
		zap.Error(failure.cause),
	)
	item.Status = domain.ItemStatusFailed
	batch.ProcessedRecords++
	batch.FailedRecords++
	s.payrunMetrics.IncItemOutcome(metrics.ItemOutcomeFailed, failure.code)
	s.metrics.RecordItemFailure(ctx, failure.code)
	s.publish(ctx, batch, &item)
	return nil
}

func (s *Service) computePay(ctx context.Context, batch domain.Batch, item domain.Item) (calculator.Amounts, *itemFailure) {
	profile, err := s.employeeSvc.GetByID(ctx, item.ProfileID.String())
	if err != nil {
		if errors.Is(err, employeedomain.ErrNotFound) {
			return calculator.Amounts{}, &itemFailure{
				code:  domain.ErrorCodeEmployeeNotFound,
				cause: fmt.Errorf("%w: profile %s", domain.ErrEmployeeNotFound, item.ProfileID),
			}
		}
		return calculator.Amounts{}, &itemFailure{code: domain.ErrorCodePersistence, cause: err}
	}

	policy := s.policy.Get()
	hours := policy.FixedHours
	if policy.HoursSource != config.HoursSourceFixed {
		hours, err = s.workingHoursSvc.ApprovedHours(ctx, profile.ID, batch.PayPeriodStart, batch.PayPeriodEnd)
		if err != nil {
			return calculator.Amounts{}, &itemFailure{code: domain.ErrorCodePersistence, cause: err}
		}
	}

	rate := calculator.ResolveRate(profile.HourlyRate, policy.DefaultHourlyRate)
	amounts, err := calculator.Compute(rate, hours, policy.DeductionRate)
	if err != nil {
		return calculator.Amounts{}, &itemFailure{code: domain.ErrorCodeCalculation, cause: err}
	}
	return amounts, nil
}

// commitSuccess writes the payroll record, flips the item and bumps the batch counters
// in one transaction. It returns the net pay of the stored record.
func (s *Service) commitSuccess(ctx context.Context, batch domain.Batch, item domain.Item, driverID string, amounts calculator.Amounts) (decimal.Decimal, error) {
	now := s.clock.Now()
	var net decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, _, err := s.payrollSvc.Record(ctx, tx, payrolldomain.RecordRequest{
			ProfileID:      item.ProfileID,
			BulkPayrollID:  batch.ID,
			IdempotencyKey: payrolldomain.IdempotencyKey(batch.ID, item.ProfileID),
			PayPeriodStart: batch.PayPeriodStart,
			PayPeriodEnd:   batch.PayPeriodEnd,
			TotalHours:     amounts.TotalHours,
			HourlyRate:     amounts.HourlyRate,
			GrossPay:       amounts.GrossPay,
			Deductions:     amounts.Deductions,
			NetPay:         amounts.NetPay,
		})
		if err != nil {
			return err
		}

		affected, err := s.repo.MarkItemProcessed(ctx, tx, item.ID, record.ID, now)
		if err != nil {
			return fmt.Errorf("mark item processed: %w", err)
		}
		if affected == 0 {
			return domain.ErrLeaseLost
		}

		affected, err = s.repo.RecordSuccess(ctx, tx, batch.ID, driverID, item.ID, record.NetPay, now.Add(s.leaseTTL()), now)
		if err != nil {
			return fmt.Errorf("update batch progress: %w", err)
		}
		if affected == 0 {
			return domain.ErrLeaseLost
		}
		net = record.NetPay
		return nil
	})
	return net, err
}

func (s *Service) commitFailure(ctx context.Context, batch domain.Batch, item domain.Item, driverID string, failure *itemFailure) error {
	now := s.clock.Now()
	message := failure.cause.Error()
	if len(message) > maxErrorMessageLen {
		message = message[:maxErrorMessageLen]
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.MarkItemFailed(ctx, tx, item.ID, failure.code, message, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrLeaseLost
		}
		affected, err = s.repo.RecordFailure(ctx, tx, batch.ID, driverID, item.ID, now.Add(s.leaseTTL()), now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrLeaseLost
		}
		return nil
	})
}

func (s *Service) finish(ctx context.Context, batch domain.Batch, driverID string, started time.Time) (domain.RunResult, error) {
	status := guard.FinalStatus(batch.FailedRecords)
	affected, err := s.closeRun(ctx, batch.ID, driverID, status, nil)
	if err != nil {
		return s.abort(ctx, batch.ID, driverID, fmt.Errorf("complete batch: %w", err))
	}
	current, err := s.reload(context.WithoutCancel(ctx), batch.ID)
	if err != nil {
		return domain.RunResult{}, err
	}
	if affected == 0 {
		return resultFrom(current, "driver stopped, batch is "+string(current.Status)), nil
	}

	s.transitioned(domain.BatchStatusProcessing, status)
	s.payrunMetrics.ObserveRunDuration(string(status), s.clock.Now().Sub(started))
	s.metrics.RecordBatchRun(ctx, string(status))
	s.logger(ctx, batch.ID).Info("bulk_payroll.run.finish",
		zap.String("status", string(status)),
		zap.Int("processed_records", current.ProcessedRecords),
		zap.Int("failed_records", current.FailedRecords),
		zap.String("total_amount", current.TotalAmount.StringFixed(2)),
	)
	s.audit(ctx, auditdomain.ActionBulkPayrollCompleted, current, map[string]any{
		"status":            string(status),
		"processed_records": current.ProcessedRecords,
		"failed_records":    current.FailedRecords,
		"total_amount":      current.TotalAmount.StringFixed(2),
	})
	s.publish(ctx, current, nil)
	return resultFrom(current, fmt.Sprintf("processed %d of %d items, %d failed",
		current.ProcessedRecords, current.TotalRecords, current.FailedRecords)), nil
}

// closeRun releases a processing batch held by driverID into status to.
func (s *Service) closeRun(ctx context.Context, batchID snowflake.ID, driverID string, to domain.BatchStatus, reason *string) (int64, error) {
	if err := guard.EnsureTransition(domain.BatchStatusProcessing, to); err != nil {
		return 0, fmt.Errorf("close run as %s: %w", to, err)
	}
	return s.repo.CloseRun(ctx, s.db, batchID, driverID, to, reason, s.clock.Now())
}

// abort moves a batch this driver owns to failed and returns cause.
func (s *Service) abort(ctx context.Context, batchID snowflake.ID, driverID string, cause error) (domain.RunResult, error) {
	ctx = context.WithoutCancel(ctx)
	reason := cause.Error()
	if len(reason) > maxErrorMessageLen {
		reason = reason[:maxErrorMessageLen]
	}
	affected, err := s.closeRun(ctx, batchID, driverID, domain.BatchStatusFailed, &reason)
	if err != nil {
		s.logger(ctx, batchID).Error("bulk_payroll.run.abort_failed", zap.Error(err))
		return domain.RunResult{BatchID: batchID, Status: domain.BatchStatusProcessing, Message: reason}, errors.Join(cause, err)
	}
	current, err := s.reload(ctx, batchID)
	if err != nil {
		return domain.RunResult{BatchID: batchID, Status: domain.BatchStatusFailed, Message: reason}, errors.Join(cause, err)
	}
	if affected > 0 {
		s.transitioned(domain.BatchStatusProcessing, domain.BatchStatusFailed)
		s.metrics.RecordBatchRun(ctx, string(domain.BatchStatusFailed))
		s.payrunMetrics.IncJobError("bulk_payroll_run", cause)
		s.logger(ctx, batchID).Error("bulk_payroll.run.failed", zap.Error(cause))
		s.audit(ctx, auditdomain.ActionBulkPayrollFailed, current, map[string]any{"reason": reason})
		s.publish(ctx, current, nil)
	}
	return resultFrom(current, reason), cause
}

// interrupt parks the batch as paused when the driving context ends, so it can be resumed.
func (s *Service) interrupt(ctx context.Context, batchID snowflake.ID, driverID string, cause error) (domain.RunResult, error) {
	ctx = context.WithoutCancel(ctx)
	affected, err := s.closeRun(ctx, batchID, driverID, domain.BatchStatusPaused, nil)
	if err != nil {
		return domain.RunResult{BatchID: batchID, Status: domain.BatchStatusProcessing}, errors.Join(cause, err)
	}
	current, err := s.reload(ctx, batchID)
	if err != nil {
		return domain.RunResult{BatchID: batchID}, errors.Join(cause, err)
	}
	if affected > 0 {
		s.transitioned(domain.BatchStatusProcessing, domain.BatchStatusPaused)
		s.logger(ctx, batchID).Warn("bulk_payroll.run.interrupted", zap.Error(cause))
		s.audit(ctx, auditdomain.ActionBulkPayrollPaused, current, map[string]any{"reason": cause.Error()})
		s.publish(ctx, current, nil)
	}
	return resultFrom(current, "run interrupted, batch is "+string(current.Status)), cause
}
