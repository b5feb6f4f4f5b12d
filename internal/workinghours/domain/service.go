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
	Insert(ctx context.Context, db *gorm.DB, entry *WorkingHour) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WorkingHour, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*WorkingHour, error)
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	ListApproved(ctx context.Context, db *gorm.DB, profileID snowflake.ID, start, end time.Time) ([]*WorkingHour, error)
	MarkPaid(ctx context.Context, db *gorm.DB, profileID snowflake.ID, start, end time.Time, now time.Time) (int64, error)
}

type CreateRequest struct {
	ProfileID     string
	ClientID      string
	ProjectID     string
	WorkDate      time.Time
	StartTime     string
	EndTime       string
	TotalHours    decimal.Decimal
	OvertimeHours decimal.Decimal
	Notes         string
}

type ListRequest struct {
	pagination.Pagination
	ProfileID string
	Status    string
	From      *time.Time
	To        *time.Time
}

type ListFilter struct {
	ProfileID snowflake.ID
	Status    Status
	From      *time.Time
	To        *time.Time
	CursorID  snowflake.ID
	Limit     int
}

type ListResponse struct {
	pagination.PageInfo
	WorkingHours []WorkingHour `json:"working_hours"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (WorkingHour, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Approve(ctx context.Context, id string) (WorkingHour, error)
	Reject(ctx context.Context, id string) (WorkingHour, error)
	Delete(ctx context.Context, id string) error
	// ApprovedHours sums approved hours of the employee dated within [start, end].
	ApprovedHours(ctx context.Context, profileID snowflake.ID, start, end time.Time) (decimal.Decimal, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, profileID snowflake.ID, start, end time.Time) error
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidProfile   = errors.New("invalid_profile")
	ErrInvalidDate      = errors.New("invalid_date")
	ErrInvalidHours     = errors.New("invalid_hours")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidRange     = errors.New("invalid_date_range")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
	ErrNotPending       = errors.New("working_hours_not_pending")
	ErrAlreadyPaid      = errors.New("working_hours_already_paid")
)
