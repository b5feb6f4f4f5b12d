package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	auditdomain "github.com/smallbiznis/workforce/internal/audit/domain"
	"github.com/smallbiznis/workforce/internal/audit/repository"
	"github.com/smallbiznis/workforce/internal/clock"
	obscontext "github.com/smallbiznis/workforce/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupAuditTest(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		actor_role TEXT,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		request_id TEXT,
		created_at DATETIME NOT NULL
	)`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
	return svc, db
}

func TestAuditLogRecordsActorAndMasksPII(t *testing.T) {
	svc, _ := setupAuditTest(t)

	ctx := actorcontext.WithActor(context.Background(), actorcontext.Actor{ID: "7", Role: actorcontext.RoleAccountant})
	ctx = obscontext.WithRequestID(ctx, "req-1")
	require.NoError(t, svc.AuditLog(ctx, auditdomain.ActionBulkPayrollCreated, "bulk_payroll", "99", map[string]any{
		"email": "jane@example.com",
		"total": 3,
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{TargetID: "99"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, auditdomain.ActionBulkPayrollCreated, entry.Action)
	assert.Equal(t, actorcontext.RoleAccountant, entry.ActorRole)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "7", *entry.ActorID)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	assert.Equal(t, "j****@example.com", entry.Metadata["email"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _ := setupAuditTest(t)

	require.NoError(t, svc.AuditLog(context.Background(), auditdomain.ActionBulkPayrollRecovered, "bulk_payroll", "1", nil))
	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, actorcontext.RoleSystem, resp.AuditLogs[0].ActorRole)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _ := setupAuditTest(t)
	assert.ErrorIs(t, svc.AuditLog(context.Background(), " ", "bulk_payroll", "1", nil), auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, _ := setupAuditTest(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(context.Background(), auditdomain.ActionPayrollApproved, "payroll", "1", nil))
	}

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	first, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.List(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.Less(t, int64(second.AuditLogs[0].ID), int64(first.AuditLogs[1].ID))

	req.PageToken = "not-base64!"
	_, err = svc.List(context.Background(), req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
