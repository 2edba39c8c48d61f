package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/pkg/db/option"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, quarter *domain.VATQuarter) error {
	return db.WithContext(ctx).Create(quarter).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, quarter *domain.VATQuarter) error {
	return db.WithContext(ctx).Save(quarter).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VATQuarter, error) {
	var quarter domain.VATQuarter
	err := db.WithContext(ctx).Where("id = ?", id).First(&quarter).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &quarter, nil
}

func (r *repo) FindOpenByPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, period string) (*domain.VATQuarter, error) {
	var quarter domain.VATQuarter
	err := db.WithContext(ctx).
		Where("client_id = ? AND quarter_period = ? AND is_completed = ?", clientID, period, false).
		First(&quarter).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &quarter, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListQuarterFilter, page pagination.Pagination) ([]*domain.VATQuarter, error) {
	var quarters []*domain.VATQuarter
	stmt := db.WithContext(ctx).Model(&domain.VATQuarter{})
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.AssignedUserID != nil {
		stmt = stmt.Where("assigned_user_id = ?", *filter.AssignedUserID)
	}
	if filter.Stage != "" {
		stmt = stmt.Where("current_stage = ?", filter.Stage)
	}
	if filter.DueBefore != nil {
		stmt = stmt.Where("filing_due_date <= ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		stmt = stmt.Where("filing_due_date >= ?", *filter.DueAfter)
	}
	if filter.UncompletedOnly {
		stmt = stmt.Where("is_completed = ?", false)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where(
			"filing_due_date > ? OR (filing_due_date = ? AND id > ?)",
			filter.Cursor.FilingDue, filter.Cursor.FilingDue, filter.Cursor.ID,
		)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("filing_due_date asc, id asc").
		Find(&quarters).Error
	if err != nil {
		return nil, err
	}
	return quarters, nil
}

func (r *repo) InsertHistory(ctx context.Context, db *gorm.DB, row *domain.VATQuarterHistory) error {
	return db.WithContext(ctx).Create(row).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, quarterID snowflake.ID) ([]*domain.VATQuarterHistory, error) {
	var rows []*domain.VATQuarterHistory
	err := db.WithContext(ctx).
		Where("vat_quarter_id = ?", quarterID).
		Order("stage_changed_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
