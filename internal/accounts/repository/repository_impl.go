package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/accounts/domain"
)

type ltdRepository struct{}

type nonLtdRepository struct{}

// Provide exposes both table repositories to fx.
func Provide() (domain.LtdRepository, domain.NonLtdRepository) {
	return &ltdRepository{}, &nonLtdRepository{}
}

func (r *ltdRepository) Insert(ctx context.Context, db *gorm.DB, wf *domain.LtdAccountsWorkflow) error {
	return db.WithContext(ctx).Create(wf).Error
}

func (r *ltdRepository) Update(ctx context.Context, db *gorm.DB, wf *domain.LtdAccountsWorkflow) error {
	return db.WithContext(ctx).Save(wf).Error
}

func (r *ltdRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LtdAccountsWorkflow, error) {
	var wf domain.LtdAccountsWorkflow
	err := db.WithContext(ctx).Where("id = ?", id).First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *ltdRepository) FindOpenByPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, periodEnd time.Time) (*domain.LtdAccountsWorkflow, error) {
	var wf domain.LtdAccountsWorkflow
	err := db.WithContext(ctx).
		Where("client_id = ? AND filing_period_end = ? AND is_completed = ?", clientID, periodEnd, false).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *ltdRepository) List(ctx context.Context, db *gorm.DB, filter domain.ListWorkflowFilter) ([]*domain.LtdAccountsWorkflow, error) {
	var rows []*domain.LtdAccountsWorkflow
	if err := applyWorkflowFilter(db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ltdRepository) InsertHistory(ctx context.Context, db *gorm.DB, h *domain.LtdWorkflowHistory) error {
	return db.WithContext(ctx).Create(h).Error
}

func (r *ltdRepository) ListHistory(ctx context.Context, db *gorm.DB, workflowID snowflake.ID) ([]*domain.LtdWorkflowHistory, error) {
	var rows []*domain.LtdWorkflowHistory
	err := db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("stage_changed_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *nonLtdRepository) Insert(ctx context.Context, db *gorm.DB, wf *domain.NonLtdAccountsWorkflow) error {
	return db.WithContext(ctx).Create(wf).Error
}

func (r *nonLtdRepository) Update(ctx context.Context, db *gorm.DB, wf *domain.NonLtdAccountsWorkflow) error {
	return db.WithContext(ctx).Save(wf).Error
}

func (r *nonLtdRepository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.NonLtdAccountsWorkflow, error) {
	var wf domain.NonLtdAccountsWorkflow
	err := db.WithContext(ctx).Where("id = ?", id).First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *nonLtdRepository) FindOpenByPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, periodEnd time.Time) (*domain.NonLtdAccountsWorkflow, error) {
	var wf domain.NonLtdAccountsWorkflow
	err := db.WithContext(ctx).
		Where("client_id = ? AND filing_period_end = ? AND is_completed = ?", clientID, periodEnd, false).
		First(&wf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *nonLtdRepository) List(ctx context.Context, db *gorm.DB, filter domain.ListWorkflowFilter) ([]*domain.NonLtdAccountsWorkflow, error) {
	var rows []*domain.NonLtdAccountsWorkflow
	if err := applyWorkflowFilter(db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *nonLtdRepository) InsertHistory(ctx context.Context, db *gorm.DB, h *domain.NonLtdWorkflowHistory) error {
	return db.WithContext(ctx).Create(h).Error
}

func (r *nonLtdRepository) ListHistory(ctx context.Context, db *gorm.DB, workflowID snowflake.ID) ([]*domain.NonLtdWorkflowHistory, error) {
	var rows []*domain.NonLtdWorkflowHistory
	err := db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("stage_changed_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// applyWorkflowFilter translates ListWorkflowFilter into query conditions.
// Both workflow tables share the same column set for these filters.
func applyWorkflowFilter(q *gorm.DB, filter domain.ListWorkflowFilter) *gorm.DB {
	if filter.ClientID != nil {
		q = q.Where("client_id = ?", *filter.ClientID)
	}
	if filter.AssignedUserID != nil {
		q = q.Where("assigned_user_id = ?", *filter.AssignedUserID)
	}
	if filter.Stage != "" {
		q = q.Where("current_stage = ?", filter.Stage)
	}
	if filter.DueBefore != nil {
		q = q.Where("accounts_due_date < ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		q = q.Where("accounts_due_date >= ?", *filter.DueAfter)
	}
	if filter.UncompletedOnly {
		q = q.Where("is_completed = ?", false)
	}
	if filter.Cursor != nil {
		q = q.Where(
			"accounts_due_date > ? OR (accounts_due_date = ? AND id > ?)",
			filter.Cursor.AccountsDue, filter.Cursor.AccountsDue, filter.Cursor.ID,
		)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit + 1)
	}
	return q.Order("accounts_due_date asc, id asc")
}
