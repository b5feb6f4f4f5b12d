package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const batchColumns = `id, reference, name, description, pay_period_start, pay_period_end, status,
	total_records, processed_records, succeeded_records, failed_records, total_amount,
	created_by, driver_id, lease_expires_at, last_item_id, failure_reason,
	started_at, finished_at, created_at, updated_at`

const itemColumns = `id, bulk_payroll_id, profile_id, status, payroll_id, error_code, error_message,
	processed_at, created_at, updated_at`

const itemInsertChunk = 200

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, b *domain.Batch) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bulk_payroll (`+batchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.Reference,
		b.Name,
		b.Description,
		b.PayPeriodStart,
		b.PayPeriodEnd,
		b.Status,
		b.TotalRecords,
		b.ProcessedRecords,
		b.SucceededRecords,
		b.FailedRecords,
		b.TotalAmount,
		b.CreatedBy,
		b.DriverID,
		b.LeaseExpiresAt,
		b.LastItemID,
		b.FailureReason,
		b.StartedAt,
		b.FinishedAt,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(items, itemInsertChunk).Error
}

func (r *repo) FindBatch(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Batch, error) {
	var batch domain.Batch
	err := db.WithContext(ctx).Raw(`SELECT `+batchColumns+` FROM bulk_payroll WHERE id = ?`, id).Scan(&batch).Error
	if err != nil {
		return nil, err
	}
	if batch.ID == 0 {
		return nil, nil
	}
	return &batch, nil
}

func (r *repo) ListBatches(ctx context.Context, db *gorm.DB, filter domain.ListBatchFilter) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	stmt := db.WithContext(ctx).Model(&domain.Batch{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CursorID != 0 {
		stmt = stmt.Where("id < ?", filter.CursorID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Order("id desc").Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repo) CountItems(ctx context.Context, db *gorm.DB, batchID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM bulk_payroll_items WHERE bulk_payroll_id = ?`,
		batchID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, batchID snowflake.ID) ([]*domain.Item, error) {
	var items []*domain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM bulk_payroll_items WHERE bulk_payroll_id = ? ORDER BY id`,
		batchID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) NextPendingItem(ctx context.Context, db *gorm.DB, batchID, afterID snowflake.ID) (*domain.Item, error) {
	var item domain.Item
	err := db.WithContext(ctx).Raw(
		`SELECT `+itemColumns+`
		 FROM bulk_payroll_items
		 WHERE bulk_payroll_id = ? AND status = ? AND id > ?
		 ORDER BY id
		 LIMIT 1`,
		batchID, domain.ItemStatusPending, afterID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListFailures(ctx context.Context, db *gorm.DB, batchID snowflake.ID) ([]domain.FailureRow, error) {
	var rows []domain.FailureRow
	err := db.WithContext(ctx).Raw(
		`SELECT i.id AS item_id, i.profile_id,
		        COALESCE(p.full_name, '') AS full_name,
		        COALESCE(p.email, '') AS email,
		        COALESCE(i.error_code, '') AS error_code,
		        COALESCE(i.error_message, '') AS error_message,
		        i.processed_at
		 FROM bulk_payroll_items i
		 LEFT JOIN profiles p ON p.id = i.profile_id
		 WHERE i.bulk_payroll_id = ? AND i.status = ?
		 ORDER BY i.id`,
		batchID, domain.ItemStatusFailed,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) ClaimDraft(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, leaseUntil, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET status = ?, driver_id = ?, lease_expires_at = ?, started_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.BatchStatusProcessing, driverID, leaseUntil, now, now,
		id, domain.BatchStatusDraft,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ClaimPaused(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, leaseUntil, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET status = ?, driver_id = ?, lease_expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.BatchStatusProcessing, driverID, leaseUntil, now,
		id, domain.BatchStatusPaused,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) TakeOver(ctx context.Context, db *gorm.DB, id snowflake.ID, oldDriver, newDriver string, leaseUntil, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET driver_id = ?, lease_expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND COALESCE(driver_id, '') = ?
		   AND (lease_expires_at IS NULL OR lease_expires_at < ?)`,
		newDriver, leaseUntil, now,
		id, domain.BatchStatusProcessing, oldDriver, now,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	err := db.WithContext(ctx).Raw(
		`SELECT `+batchColumns+`
		 FROM bulk_payroll
		 WHERE status = ? AND (lease_expires_at IS NULL OR lease_expires_at < ?)
		 ORDER BY id
		 LIMIT ?`,
		domain.BatchStatusProcessing, now, limit,
	).Scan(&batches).Error
	return batches, err
}

func (r *repo) FailDraft(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET status = ?, failure_reason = ?, finished_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.BatchStatusFailed, reason, now, now,
		id, domain.BatchStatusDraft,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Pause(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET status = ?, driver_id = NULL, lease_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.BatchStatusPaused, now,
		id, domain.BatchStatusProcessing,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) CloseRun(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, status domain.BatchStatus, reason *string, now time.Time) (int64, error) {
	var finishedAt *time.Time
	if status.Terminal() {
		finishedAt = &now
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET status = ?, failure_reason = COALESCE(?, failure_reason), finished_at = COALESCE(?, finished_at),
		     driver_id = NULL, lease_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND driver_id = ?`,
		status, reason, finishedAt, now,
		id, domain.BatchStatusProcessing, driverID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkItemProcessed(ctx context.Context, db *gorm.DB, itemID, payrollID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll_items
		 SET status = ?, payroll_id = ?, error_code = NULL, error_message = NULL, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.ItemStatusProcessed, payrollID, now, now,
		itemID, domain.ItemStatusPending,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkItemFailed(ctx context.Context, db *gorm.DB, itemID snowflake.ID, code, message string, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll_items
		 SET status = ?, error_code = ?, error_message = ?, processed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.ItemStatusFailed, code, message, now, now,
		itemID, domain.ItemStatusPending,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) RecordSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, itemID snowflake.ID, amount decimal.Decimal, leaseUntil, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET processed_records = processed_records + 1,
		     succeeded_records = succeeded_records + 1,
		     total_amount = total_amount + ?,
		     last_item_id = ?, lease_expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND driver_id = ?`,
		amount, itemID, leaseUntil, now,
		id, domain.BatchStatusProcessing, driverID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, itemID snowflake.ID, leaseUntil, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE bulk_payroll
		 SET processed_records = processed_records + 1,
		     failed_records = failed_records + 1,
		     last_item_id = ?, lease_expires_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND driver_id = ?`,
		itemID, leaseUntil, now,
		id, domain.BatchStatusProcessing, driverID,
	)
	return result.RowsAffected, result.Error
}
