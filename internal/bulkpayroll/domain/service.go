package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, batch *Batch) error
	InsertItems(ctx context.Context, db *gorm.DB, items []Item) error
	FindBatch(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Batch, error)
	ListBatches(ctx context.Context, db *gorm.DB, filter ListBatchFilter) ([]*Batch, error)
	CountItems(ctx context.Context, db *gorm.DB, batchID snowflake.ID) (int64, error)
	ListItems(ctx context.Context, db *gorm.DB, batchID snowflake.ID) ([]*Item, error)
	NextPendingItem(ctx context.Context, db *gorm.DB, batchID, afterID snowflake.ID) (*Item, error)
	ListFailures(ctx context.Context, db *gorm.DB, batchID snowflake.ID) ([]FailureRow, error)

	// ClaimDraft moves a draft batch to processing under driverID.
	ClaimDraft(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, leaseUntil, now time.Time) (int64, error)
	// ClaimPaused moves a paused batch back to processing under driverID.
	ClaimPaused(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, leaseUntil, now time.Time) (int64, error)
	// TakeOver hands a processing batch whose lease expired from oldDriver to newDriver.
	TakeOver(ctx context.Context, db *gorm.DB, id snowflake.ID, oldDriver, newDriver string, leaseUntil, now time.Time) (int64, error)
	ListExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Batch, error)
	FailDraft(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string, now time.Time) (int64, error)
	Pause(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	// CloseRun ends the run of driverID, moving processing to status and clearing the driver.
	CloseRun(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, status BatchStatus, reason *string, now time.Time) (int64, error)

	MarkItemProcessed(ctx context.Context, db *gorm.DB, itemID, payrollID snowflake.ID, now time.Time) (int64, error)
	MarkItemFailed(ctx context.Context, db *gorm.DB, itemID snowflake.ID, code, message string, now time.Time) (int64, error)
	// RecordSuccess and RecordFailure bump the batch counters, the cursor and the lease,
	// guarded by status=processing and the driver id.
	RecordSuccess(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, itemID snowflake.ID, amount decimal.Decimal, leaseUntil, now time.Time) (int64, error)
	RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, driverID string, itemID snowflake.ID, leaseUntil, now time.Time) (int64, error)
}

type CreateBatchRequest struct {
	Name           string
	Description    string
	PayPeriodStart time.Time
	PayPeriodEnd   time.Time
	EmployeeIDs    []string
}

type ListBatchRequest struct {
	pagination.Pagination
	Status string
}

type ListBatchFilter struct {
	Status   BatchStatus
	CursorID snowflake.ID
	Limit    int
}

type ListBatchResponse struct {
	pagination.PageInfo
	Batches []Batch `json:"batches"`
}

// RunResult is the explicit outcome of driving a batch.
type RunResult struct {
	BatchID     snowflake.ID    `json:"batch_id"`
	Status      BatchStatus     `json:"status"`
	Attempted   int             `json:"attempted"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`
}

// Progress is published after every batch or item mutation.
type Progress struct {
	BatchID     snowflake.ID    `json:"batch_id"`
	Status      BatchStatus     `json:"status"`
	Total       int             `json:"total_records"`
	Processed   int             `json:"processed_records"`
	Succeeded   int             `json:"succeeded_records"`
	Failed      int             `json:"failed_records"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemID      snowflake.ID    `json:"item_id,omitempty"`
	ItemStatus  ItemStatus      `json:"item_status,omitempty"`
	At          time.Time       `json:"at"`
}

// ProgressListener is the refresh callback of the presentation layer.
type ProgressListener interface {
	OnProgress(ctx context.Context, progress Progress)
}

type Service interface {
	CreateBatch(ctx context.Context, req CreateBatchRequest) (Batch, error)
	StartBatch(ctx context.Context, id string) (RunResult, error)
	PauseBatch(ctx context.Context, id string) (Batch, error)
	ResumeBatch(ctx context.Context, id string) (RunResult, error)
	// RecoverBatch takes over a processing batch whose driver lease expired and drives it.
	RecoverBatch(ctx context.Context, batch Batch) (RunResult, error)
	ListExpired(ctx context.Context, limit int) ([]Batch, error)
	GetBatch(ctx context.Context, id string) (Batch, error)
	ListBatches(ctx context.Context, req ListBatchRequest) (ListBatchResponse, error)
	ListItems(ctx context.Context, batchID string) ([]Item, error)
	FailureManifest(ctx context.Context, batchID string) ([]FailureRow, error)
}

var (
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidPayPeriod       = errors.New("invalid_pay_period")
	ErrEmptyEmployeeSelection = errors.New("empty_employee_selection")
	ErrInvalidEmployeeID      = errors.New("invalid_employee_id")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidPageToken       = errors.New("invalid_page_token")
	ErrNoItems                = errors.New("no_items")
	ErrNotFound               = errors.New("not_found")
	ErrEmployeeNotFound       = errors.New("employee_not_found")
	ErrBatchNotStartable      = errors.New("batch_not_startable")
	ErrBatchNotPausable       = errors.New("batch_not_pausable")
	ErrBatchNotResumable      = errors.New("batch_not_resumable")
	ErrBatchNotRecoverable    = errors.New("batch_not_recoverable")
	ErrLeaseLost              = errors.New("lease_lost")
)
