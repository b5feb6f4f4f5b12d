package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/workforce/internal/workinghours/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const columns = `id, profile_id, client_id, project_id, work_date, start_time, end_time,
	total_hours, overtime_hours, status, notes, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.WorkingHour) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO working_hours (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ProfileID,
		e.ClientID,
		e.ProjectID,
		e.WorkDate,
		e.StartTime,
		e.EndTime,
		e.TotalHours,
		e.OvertimeHours,
		e.Status,
		e.Notes,
		e.CreatedAt,
		e.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WorkingHour, error) {
	var entry domain.WorkingHour
	err := db.WithContext(ctx).Raw(`SELECT `+columns+` FROM working_hours WHERE id = ?`, id).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.WorkingHour, error) {
	var entries []*domain.WorkingHour
	stmt := db.WithContext(ctx).Model(&domain.WorkingHour{})
	if filter.ProfileID != 0 {
		stmt = stmt.Where("profile_id = ?", filter.ProfileID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("work_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("work_date <= ?", *filter.To)
	}
	if filter.CursorID != 0 {
		stmt = stmt.Where("id < ?", filter.CursorID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Order("id desc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE working_hours SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM working_hours WHERE id = ? AND status <> ?`,
		id, domain.StatusPaid,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) ListApproved(ctx context.Context, db *gorm.DB, profileID snowflake.ID, start, end time.Time) ([]*domain.WorkingHour, error) {
	var entries []*domain.WorkingHour
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+`
		 FROM working_hours
		 WHERE profile_id = ? AND status = ? AND work_date >= ? AND work_date <= ?
		 ORDER BY work_date, id`,
		profileID, domain.StatusApproved, start, end,
	).Scan(&entries).Error
	return entries, err
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, profileID snowflake.ID, start, end time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE working_hours SET status = ?, updated_at = ?
		 WHERE profile_id = ? AND status = ? AND work_date >= ? AND work_date <= ?`,
		domain.StatusPaid, now, profileID, domain.StatusApproved, start, end,
	)
	return result.RowsAffected, result.Error
}
