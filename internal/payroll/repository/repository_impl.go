package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workforce/internal/payroll/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const columns = `id, profile_id, bulk_payroll_id, idempotency_key, pay_period_start, pay_period_end,
	total_hours, hourly_rate, gross_pay, deductions, net_pay, status, created_at, updated_at`

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, p *domain.Payroll) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(p)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payroll, error) {
	var p domain.Payroll
	err := db.WithContext(ctx).Raw(`SELECT `+columns+` FROM payroll WHERE id = ?`, id).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.Payroll, error) {
	var p domain.Payroll
	err := db.WithContext(ctx).Raw(`SELECT `+columns+` FROM payroll WHERE idempotency_key = ?`, key).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Payroll, error) {
	var items []*domain.Payroll
	stmt := db.WithContext(ctx).Model(&domain.Payroll{})
	if filter.ProfileID != 0 {
		stmt = stmt.Where("profile_id = ?", filter.ProfileID)
	}
	if filter.BulkPayrollID != 0 {
		stmt = stmt.Where("bulk_payroll_id = ?", filter.BulkPayrollID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CursorID != 0 {
		stmt = stmt.Where("id < ?", filter.CursorID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payroll SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	return result.RowsAffected, result.Error
}
