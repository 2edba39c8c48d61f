package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/pkg/db/option"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Create(client).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Save(client).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Client{}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Client, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Client, error) {
	return r.findOne(ctx, db, "client_code = ?", code)
}

func (r *repo) FindByCompanyNumber(ctx context.Context, db *gorm.DB, companyNumber string) (*domain.Client, error) {
	return r.findOne(ctx, db, "company_number = ?", companyNumber)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Where(query, arg).First(&client).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).Model(&domain.Client{})
	if filter.Category != "" {
		stmt = stmt.Where("company_category = ?", filter.Category)
	}
	if filter.AssignedUserID != nil {
		id := *filter.AssignedUserID
		stmt = stmt.Where(
			"assigned_user_id = ? OR ltd_assigned_user_id = ? OR non_ltd_assigned_user_id = ? OR vat_assigned_user_id = ?",
			id, id, id, id,
		)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if filter.VATEnabledOnly {
		stmt = stmt.Where("vat_enabled = ?", true)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		stmt = stmt.Where("company_name LIKE ? OR client_code LIKE ? OR company_number LIKE ?", like, like, like)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) ListRegistryLinked(ctx context.Context, db *gorm.DB) ([]*domain.Client, error) {
	var clients []*domain.Client
	err := db.WithContext(ctx).
		Where("is_active = ? AND company_number IS NOT NULL AND company_number <> ''", true).
		Order("registry_refreshed_at asc, id asc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) CountByCodePrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("client_code LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}
