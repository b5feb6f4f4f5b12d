package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent writes the record unless its idempotency key already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, p *Payroll) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payroll, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*Payroll, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Payroll, error)
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, now time.Time) (int64, error)
}

// RecordRequest carries an already computed pay result.
type RecordRequest struct {
	ProfileID      snowflake.ID
	BulkPayrollID  snowflake.ID
	IdempotencyKey string
	PayPeriodStart time.Time
	PayPeriodEnd   time.Time
	TotalHours     decimal.Decimal
	HourlyRate     decimal.Decimal
	GrossPay       decimal.Decimal
	Deductions     decimal.Decimal
	NetPay         decimal.Decimal
}

type ListRequest struct {
	pagination.Pagination
	ProfileID     string
	BulkPayrollID string
	Status        string
}

type ListFilter struct {
	ProfileID     snowflake.ID
	BulkPayrollID snowflake.ID
	Status        Status
	CursorID      snowflake.ID
	Limit         int
}

type ListResponse struct {
	pagination.PageInfo
	Payrolls []Payroll `json:"payrolls"`
}

type Service interface {
	// Record stores the payroll inside tx. A record already stored under the same
	// idempotency key is returned unchanged with created=false.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) (Payroll, bool, error)
	GetByID(ctx context.Context, id string) (Payroll, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Approve(ctx context.Context, id string) (Payroll, error)
	MarkPaid(ctx context.Context, id string) (Payroll, error)
	Payslip(ctx context.Context, id string) (io.Reader, error)
}

// IdempotencyKey derives the payroll key of one employee inside one batch.
func IdempotencyKey(batchID, profileID snowflake.ID) string {
	return fmt.Sprintf("bulk_payroll:%s:%s", batchID.String(), profileID.String())
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidPageToken   = errors.New("invalid_page_token")
	ErrInvalidAmounts     = errors.New("invalid_amounts")
	ErrInvalidPeriod      = errors.New("invalid_pay_period")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrIdempotencyMissing = errors.New("idempotency_record_missing")
)
