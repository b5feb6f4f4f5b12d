package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
)

// Payroll is the pay computed for one employee and one pay period.
type Payroll struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProfileID      snowflake.ID    `gorm:"not null" json:"profile_id"`
	BulkPayrollID  *snowflake.ID   `json:"bulk_payroll_id,omitempty"`
	IdempotencyKey *string         `json:"-"`
	PayPeriodStart time.Time       `gorm:"not null" json:"pay_period_start"`
	PayPeriodEnd   time.Time       `gorm:"not null" json:"pay_period_end"`
	TotalHours     decimal.Decimal `gorm:"type:numeric(8,2)" json:"total_hours"`
	HourlyRate     decimal.Decimal `gorm:"type:numeric(12,2)" json:"hourly_rate"`
	GrossPay       decimal.Decimal `gorm:"type:numeric(14,4)" json:"gross_pay"`
	Deductions     decimal.Decimal `gorm:"type:numeric(14,4)" json:"deductions"`
	NetPay         decimal.Decimal `gorm:"type:numeric(14,4)" json:"net_pay"`
	Status         Status          `gorm:"not null" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Payroll) TableName() string { return "payroll" }
