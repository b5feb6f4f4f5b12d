package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/workforce/internal/actorcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(nil)
	require.NoError(t, err)
	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		actor  actorcontext.Actor
		object string
		action string
		allow  bool
	}{
		{"admin runs pay run", actorcontext.Actor{ID: "1", Role: actorcontext.RoleAdmin}, ObjectBulkPayroll, ActionRun, true},
		{"admin deletes profile", actorcontext.Actor{ID: "1", Role: actorcontext.RoleAdmin}, ObjectProfile, ActionDelete, true},
		{"accountant runs pay run", actorcontext.Actor{ID: "2", Role: actorcontext.RoleAccountant}, ObjectBulkPayroll, ActionRun, true},
		{"accountant cannot delete profile", actorcontext.Actor{ID: "2", Role: actorcontext.RoleAccountant}, ObjectProfile, ActionDelete, false},
		{"operation approves hours", actorcontext.Actor{ID: "3", Role: actorcontext.RoleOperation}, ObjectWorkingHours, ActionApprove, true},
		{"operation cannot run pay run", actorcontext.Actor{ID: "3", Role: actorcontext.RoleOperation}, ObjectBulkPayroll, ActionRun, false},
		{"employee logs hours", actorcontext.Actor{ID: "4", Role: actorcontext.RoleEmployee}, ObjectWorkingHours, ActionCreate, true},
		{"employee cannot view pay runs", actorcontext.Actor{ID: "4", Role: actorcontext.RoleEmployee}, ObjectBulkPayroll, ActionView, false},
		{"sales manager views profiles", actorcontext.Actor{ID: "5", Role: actorcontext.RoleSalesManager}, ObjectProfile, ActionView, true},
		{"system runs pay run", actorcontext.System, ObjectBulkPayroll, ActionRun, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.actor, tc.object, tc.action)
			if tc.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, actorcontext.Actor{Role: actorcontext.RoleAdmin}, ObjectProfile, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, actorcontext.Actor{ID: "1", Role: "owner"}, ObjectProfile, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, actorcontext.Actor{ID: "1", Role: actorcontext.RoleAdmin}, "", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, actorcontext.Actor{ID: "1", Role: actorcontext.RoleAdmin}, ObjectProfile, " "), ErrInvalidAction)
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, actorcontext.Actor{ID: "9", Role: actorcontext.RoleAdmin}, ObjectProfile, ActionDelete))
	err := svc.Authorize(ctx, actorcontext.Actor{ID: "9", Role: actorcontext.RoleEmployee}, ObjectProfile, ActionDelete)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPermissionsListsTabs(t *testing.T) {
	svc := newTestService(t)

	perms, err := svc.Permissions(context.Background(), actorcontext.Actor{ID: "4", Role: actorcontext.RoleEmployee})
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, ObjectWorkingHours, perms[0].Object)
	assert.Equal(t, []string{ActionView, ActionCreate}, perms[0].Actions)
	assert.Equal(t, ObjectPayroll, perms[1].Object)
	assert.Equal(t, []string{ActionView}, perms[1].Actions)

	perms, err = svc.Permissions(context.Background(), actorcontext.Actor{ID: "1", Role: actorcontext.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, perms, len(Objects))
}
