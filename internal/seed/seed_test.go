package seed

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/workforce/internal/actorcontext"
	"github.com/smallbiznis/workforce/internal/clock"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
	"github.com/smallbiznis/workforce/internal/employee/repository"
	"github.com/smallbiznis/workforce/internal/employee/service"
	"github.com/smallbiznis/workforce/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newEmployees(t *testing.T) employeedomain.Service {
	t.Helper()
	return service.New(service.Params{
		DB:    testutil.OpenSQLite(t),
		Log:   zaptest.NewLogger(t),
		GenID: testutil.Node(t),
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
	})
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	employees := newEmployees(t)
	ctx := context.Background()

	created, err := EnsureAdmin(ctx, employees, Admin{Email: "Owner@Example.com"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(ctx, employees, Admin{Email: "owner@example.com", FullName: "Someone Else"})
	require.NoError(t, err)
	assert.False(t, created)

	list, err := employees.List(ctx, employeedomain.ListProfileRequest{Role: actorcontext.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, list.Profiles, 1)
	assert.Equal(t, defaultAdminDisplay, list.Profiles[0].FullName)
	assert.False(t, list.Profiles[0].HourlyRate.Valid)
}

func TestEnsureDemoEmployees(t *testing.T) {
	employees := newEmployees(t)
	ctx := context.Background()

	n, err := EnsureDemoEmployees(ctx, employees)
	require.NoError(t, err)
	assert.Equal(t, len(DemoEmployees()), n)

	n, err = EnsureDemoEmployees(ctx, employees)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRequiresService(t *testing.T) {
	_, err := EnsureAdmin(context.Background(), nil, Admin{})
	assert.ErrorIs(t, err, ErrServiceRequired)
}
