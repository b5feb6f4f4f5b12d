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
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// WorkingHour is one logged shift for an employee.
type WorkingHour struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	ProfileID     snowflake.ID    `gorm:"not null" json:"profile_id"`
	ClientID      *snowflake.ID   `json:"client_id,omitempty"`
	ProjectID     *snowflake.ID   `json:"project_id,omitempty"`
	WorkDate      time.Time       `gorm:"not null" json:"work_date"`
	StartTime     *string         `json:"start_time,omitempty"`
	EndTime       *string         `json:"end_time,omitempty"`
	TotalHours    decimal.Decimal `gorm:"type:numeric(6,2)" json:"total_hours"`
	OvertimeHours decimal.Decimal `gorm:"type:numeric(6,2)" json:"overtime_hours"`
	Status        Status          `gorm:"not null" json:"status"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (WorkingHour) TableName() string { return "working_hours" }

// Hours is the payable total of the entry.
func (w WorkingHour) Hours() decimal.Decimal {
	return w.TotalHours.Add(w.OvertimeHours)
}
