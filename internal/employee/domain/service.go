package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
)

type CreateProfileRequest struct {
	FullName       string
	Email          string
	Phone          string
	Role           string
	EmploymentType string
	HourlyRate     *decimal.Decimal
	StartDate      *time.Time
}

// UpdateProfileRequest changes only the fields that are set.
type UpdateProfileRequest struct {
	ID             string
	FullName       *string
	Phone          *string
	Role           *string
	EmploymentType *string
	HourlyRate     *decimal.Decimal
	ClearRate      bool
	IsActive       *bool
}

type ListProfileRequest struct {
	pagination.Pagination
	Role       string
	ActiveOnly bool
}

type ListProfileFilter struct {
	Role       string
	ActiveOnly bool
	CursorID   snowflake.ID
	Limit      int
}

type ListProfileResponse struct {
	pagination.PageInfo
	Profiles []Profile `json:"profiles"`
}

type Service interface {
	Create(context.Context, CreateProfileRequest) (Profile, error)
	GetByID(context.Context, string) (Profile, error)
	List(context.Context, ListProfileRequest) (ListProfileResponse, error)
	Update(context.Context, UpdateProfileRequest) (Profile, error)
	Delete(context.Context, string) error
}

var (
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidRole           = errors.New("invalid_role")
	ErrInvalidEmploymentType = errors.New("invalid_employment_type")
	ErrInvalidHourlyRate     = errors.New("invalid_hourly_rate")
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidPageToken      = errors.New("invalid_page_token")
	ErrDuplicateEmail        = errors.New("duplicate_email")
	ErrNotFound              = errors.New("not_found")
	ErrInUse                 = errors.New("profile_in_use")
)
