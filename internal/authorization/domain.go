package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/workforce/internal/actorcontext"
)

const (
	ObjectProfile      = "profile"
	ObjectWorkingHours = "working_hours"
	ObjectPayroll      = "payroll"
	ObjectBulkPayroll  = "bulk_payroll"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionPay     = "pay"
	ActionRun     = "run"
)

// Objects lists every guarded object in display order.
var Objects = []string{ObjectProfile, ObjectWorkingHours, ObjectPayroll, ObjectBulkPayroll, ObjectAuditLog}

var allActions = []string{ActionView, ActionCreate, ActionUpdate, ActionDelete, ActionApprove, ActionPay, ActionRun}

// Permission is the set of actions an actor may perform on one object.
type Permission struct {
	Object  string   `json:"object"`
	Actions []string `json:"actions"`
}

type Service interface {
	Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error
	Permissions(ctx context.Context, actor actorcontext.Actor) ([]Permission, error)
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
