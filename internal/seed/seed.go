// Package seed bootstraps a fresh installation with its first administrator.
package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	employeedomain "github.com/smallbiznis/workforce/internal/employee/domain"
)

const (
	defaultAdminEmail   = "admin@workforce.local"
	defaultAdminDisplay = "Workforce Admin"
)

var ErrServiceRequired = errors.New("seed employee service is required")

type Admin struct {
	Email    string
	FullName string
}

// EnsureAdmin creates the admin profile unless one with the same email exists.
// It reports whether a profile was created.
func EnsureAdmin(ctx context.Context, employees employeedomain.Service, admin Admin) (bool, error) {
	if employees == nil {
		return false, ErrServiceRequired
	}
	email := strings.TrimSpace(admin.Email)
	if email == "" {
		email = defaultAdminEmail
	}
	name := strings.TrimSpace(admin.FullName)
	if name == "" {
		name = defaultAdminDisplay
	}

	_, err := employees.Create(ctx, employeedomain.CreateProfileRequest{
		FullName:       name,
		Email:          email,
		Role:           actorcontext.RoleAdmin,
		EmploymentType: employeedomain.EmploymentFullTime,
		HourlyRate:     nil,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, employeedomain.ErrDuplicateEmail):
		return false, nil
	default:
		return false, err
	}
}

// DemoEmployees returns sample profiles for local environments.
func DemoEmployees() []employeedomain.CreateProfileRequest {
	rate := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	return []employeedomain.CreateProfileRequest{
		{FullName: "Ana Lima", Email: "ana@workforce.local", Role: actorcontext.RoleEmployee, HourlyRate: rate(25)},
		{FullName: "Bruno Costa", Email: "bruno@workforce.local", Role: actorcontext.RoleEmployee, HourlyRate: rate(30)},
		{FullName: "Carla Dias", Email: "carla@workforce.local", Role: actorcontext.RoleEmployee, EmploymentType: employeedomain.EmploymentPartTime},
		{FullName: "Diego Alves", Email: "diego@workforce.local", Role: actorcontext.RoleAccountant, HourlyRate: rate(40)},
	}
}

// EnsureDemoEmployees creates the sample profiles that do not exist yet and returns how many were created.
func EnsureDemoEmployees(ctx context.Context, employees employeedomain.Service) (int, error) {
	if employees == nil {
		return 0, ErrServiceRequired
	}
	created := 0
	for _, req := range DemoEmployees() {
		_, err := employees.Create(ctx, req)
		switch {
		case err == nil:
			created++
		case errors.Is(err, employeedomain.ErrDuplicateEmail):
		default:
			return created, err
		}
	}
	return created, nil
}
