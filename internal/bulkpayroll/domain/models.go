package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchStatusDraft               BatchStatus = "draft"
	BatchStatusProcessing          BatchStatus = "processing"
	BatchStatusPaused              BatchStatus = "paused"
	BatchStatusCompleted           BatchStatus = "completed"
	BatchStatusCompletedWithErrors BatchStatus = "completed_with_errors"
	BatchStatusFailed              BatchStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed:
		return true
	}
	return false
}

func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusDraft, BatchStatusProcessing, BatchStatusPaused,
		BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusProcessed ItemStatus = "processed"
	ItemStatusFailed    ItemStatus = "failed"
)

// Item failure codes recorded on bulk_payroll_items.error_code.
const (
	ErrorCodeEmployeeNotFound = "employee_not_found"
	ErrorCodeCalculation      = "calculation_error"
	ErrorCodePersistence      = "persistence_error"
)

// Batch is one bulk payroll run over a pay period and a set of employees.
type Batch struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	Reference        string          `gorm:"not null" json:"reference"`
	Name             string          `gorm:"not null" json:"name"`
	Description      *string         `json:"description,omitempty"`
	PayPeriodStart   time.Time       `gorm:"not null" json:"pay_period_start"`
	PayPeriodEnd     time.Time       `gorm:"not null" json:"pay_period_end"`
	Status           BatchStatus     `gorm:"not null" json:"status"`
	TotalRecords     int             `json:"total_records"`
	ProcessedRecords int             `json:"processed_records"`
	SucceededRecords int             `json:"succeeded_records"`
	FailedRecords    int             `json:"failed_records"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(16,4)" json:"total_amount"`
	CreatedBy        *string         `json:"created_by,omitempty"`
	DriverID         *string         `json:"driver_id,omitempty"`
	LeaseExpiresAt   *time.Time      `json:"lease_expires_at,omitempty"`
	LastItemID       snowflake.ID    `json:"last_item_id"`
	FailureReason    *string         `json:"failure_reason,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	FinishedAt       *time.Time      `json:"finished_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Batch) TableName() string { return "bulk_payroll" }

// OwnedBy reports whether driverID currently holds the run.
func (b Batch) OwnedBy(driverID string) bool {
	return b.DriverID != nil && *b.DriverID == driverID
}

// Item is one employee's unit of work inside a batch.
type Item struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	BulkPayrollID snowflake.ID  `gorm:"not null" json:"bulk_payroll_id"`
	ProfileID     snowflake.ID  `gorm:"not null" json:"profile_id"`
	Status        ItemStatus    `gorm:"not null" json:"status"`
	PayrollID     *snowflake.ID `json:"payroll_id,omitempty"`
	ErrorCode     *string       `json:"error_code,omitempty"`
	ErrorMessage  *string       `json:"error_message,omitempty"`
	ProcessedAt   *time.Time    `json:"processed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Item) TableName() string { return "bulk_payroll_items" }

// FailureRow is one line of a batch failure manifest.
type FailureRow struct {
	ItemID       snowflake.ID `json:"item_id"`
	ProfileID    snowflake.ID `json:"profile_id"`
	FullName     string       `json:"full_name"`
	Email        string       `json:"email"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
}
