package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

// NewEnforcer builds the role enforcer. Policies persist through the gorm adapter
// when db is set; with a nil db they live in memory only.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if db != nil {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	}
	enforcer.EnableAutoBuildRoleLinks(true)

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor actorcontext.Actor, object string, action string) error {
	subject, roleName, err := resolveActor(actor)
	if err != nil {
		return err
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actor, object, action)
		return ErrForbidden
	}
	return nil
}

// Permissions lists, per object, the actions the actor may perform; objects with none are omitted.
func (s *ServiceImpl) Permissions(ctx context.Context, actor actorcontext.Actor) ([]Permission, error) {
	subject, roleName, err := resolveActor(actor)
	if err != nil {
		return nil, err
	}
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return nil, err
	}

	out := make([]Permission, 0, len(Objects))
	for _, object := range Objects {
		var actions []string
		for _, action := range allActions {
			ok, err := s.enforcer.Enforce(subject, object, action)
			if err != nil {
				return nil, err
			}
			if ok {
				actions = append(actions, action)
			}
		}
		if len(actions) > 0 {
			out = append(out, Permission{Object: object, Actions: actions})
		}
	}
	return out, nil
}

func resolveActor(actor actorcontext.Actor) (string, string, error) {
	id := strings.TrimSpace(actor.ID)
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	if id == "" || !actorcontext.IsKnownRole(role) {
		return "", "", ErrInvalidActor
	}
	if role == actorcontext.RoleSystem {
		return "system", "role:system", nil
	}
	return fmt.Sprintf("user:%s", id), fmt.Sprintf("role:%s", role), nil
}

// ensureGrouping keeps exactly one role link per subject, replacing a stale one.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor actorcontext.Actor, object string, action string) {
	s.log.Info("authorization denied",
		zap.String("actor_id", actor.ID),
		zap.String("role", actor.Role),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, auditdomain.ActionAuthorizationDenied, "authorization", object, map[string]any{
		"object": object,
		"action": action,
		"role":   actor.Role,
	})
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:admin", ObjectProfile, "*"},
		{"role:admin", ObjectWorkingHours, "*"},
		{"role:admin", ObjectPayroll, "*"},
		{"role:admin", ObjectBulkPayroll, "*"},
		{"role:admin", ObjectAuditLog, ActionView},

		{"role:accountant", ObjectProfile, ActionView},
		{"role:accountant", ObjectWorkingHours, ActionView},
		{"role:accountant", ObjectWorkingHours, ActionApprove},
		{"role:accountant", ObjectPayroll, ActionView},
		{"role:accountant", ObjectPayroll, ActionApprove},
		{"role:accountant", ObjectPayroll, ActionPay},
		{"role:accountant", ObjectBulkPayroll, ActionView},
		{"role:accountant", ObjectBulkPayroll, ActionCreate},
		{"role:accountant", ObjectBulkPayroll, ActionRun},
		{"role:accountant", ObjectAuditLog, ActionView},

		{"role:operation", ObjectProfile, ActionView},
		{"role:operation", ObjectWorkingHours, ActionView},
		{"role:operation", ObjectWorkingHours, ActionCreate},
		{"role:operation", ObjectWorkingHours, ActionUpdate},
		{"role:operation", ObjectWorkingHours, ActionApprove},

		{"role:sales_manager", ObjectProfile, ActionView},
		{"role:sales_manager", ObjectWorkingHours, ActionView},

		{"role:employee", ObjectWorkingHours, ActionView},
		{"role:employee", ObjectWorkingHours, ActionCreate},
		{"role:employee", ObjectPayroll, ActionView},

		{"role:system", ObjectBulkPayroll, ActionView},
		{"role:system", ObjectBulkPayroll, ActionRun},
		{"role:system", ObjectPayroll, ActionView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
