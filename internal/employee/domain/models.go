package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	EmploymentFullTime = "full-time"
	EmploymentPartTime = "part-time"
	EmploymentCasual   = "casual"
)

// Profile is an employee record. HourlyRate is null when the policy default applies.
type Profile struct {
	ID             snowflake.ID        `gorm:"primaryKey" json:"id"`
	FullName       string              `gorm:"not null" json:"full_name"`
	Email          string              `gorm:"not null" json:"email"`
	Phone          *string             `json:"phone,omitempty"`
	Role           string              `gorm:"not null" json:"role"`
	EmploymentType string              `gorm:"not null" json:"employment_type"`
	HourlyRate     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"hourly_rate"`
	IsActive       bool                `gorm:"not null" json:"is_active"`
	StartDate      *time.Time          `json:"start_date,omitempty"`
	CreatedAt      time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }
