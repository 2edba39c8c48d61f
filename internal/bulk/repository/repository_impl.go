package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/bulk/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.BulkJob) error {
	return db.WithContext(ctx).Create(job).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, job *domain.BulkJob) error {
	return db.WithContext(ctx).Save(job).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.BulkJob, error) {
	var job domain.BulkJob
	err := db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repo) DeleteExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&domain.BulkJob{})
	return result.RowsAffected, result.Error
}
