package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workforce/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionBulkPayrollCreated   = "bulk_payroll.created"
	ActionBulkPayrollStarted   = "bulk_payroll.started"
	ActionBulkPayrollPaused    = "bulk_payroll.paused"
	ActionBulkPayrollResumed   = "bulk_payroll.resumed"
	ActionBulkPayrollCompleted = "bulk_payroll.completed"
	ActionBulkPayrollFailed    = "bulk_payroll.failed"
	ActionBulkPayrollRecovered = "bulk_payroll.recovered"
	ActionPayrollApproved      = "payroll.approved"
	ActionPayrollPaid          = "payroll.paid"
	ActionWorkingHoursApproved = "working_hours.approved"
	ActionWorkingHoursRejected = "working_hours.rejected"
	ActionAuthorizationDenied  = "authorization.denied"
)

type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorRole  string            `json:"actor_role"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   *string           `json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	RequestID  *string           `json:"request_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	CursorID   snowflake.ID
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	AuditLog(ctx context.Context, action string, targetType string, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidAction    = errors.New("invalid_action")
)
