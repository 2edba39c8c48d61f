package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/assignment"
	"github.com/numericalz/practicehub/internal/workflow"
)

//go:generate mockgen -source=service.go -destination=mocks/service.go -package=mocks

var (
	ErrEmptyBatch      = errors.New("empty_batch")
	ErrBatchTooLarge   = errors.New("batch_too_large")
	ErrInvalidID       = errors.New("invalid_job_id")
	ErrJobNotFound     = errors.New("job_not_found")
	ErrInvalidCategory = errors.New("invalid_assignment_category")
)

type CreateVATQuartersRequest struct {
	ClientIDs []string `json:"client_ids"`
}

// UpdateStageRequest drives the three stage-update operations; the target
// table is picked by the service method.
type UpdateStageRequest struct {
	IDs         []string       `json:"ids"`
	TargetStage workflow.Stage `json:"target_stage"`
	Notes       string         `json:"notes,omitempty"`
}

type AssignClientsRequest struct {
	ClientIDs []string            `json:"client_ids"`
	Category  assignment.Category `json:"category"`
	UserID    snowflake.ID        `json:"user_id"` // zero clears the slot
}

type DeleteClientsRequest struct {
	ClientIDs []string `json:"client_ids"`
}

type RefreshCompaniesHouseRequest struct {
	ClientIDs []string `json:"client_ids"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *BulkJob) error
	Update(ctx context.Context, db *gorm.DB, job *BulkJob) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*BulkJob, error)
	DeleteExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

type Service interface {
	CreateVATQuarters(ctx context.Context, req CreateVATQuartersRequest) (BatchResult, error)
	UpdateVATStage(ctx context.Context, req UpdateStageRequest) (BatchResult, error)
	UpdateLtdStage(ctx context.Context, req UpdateStageRequest) (BatchResult, error)
	UpdateNonLtdStage(ctx context.Context, req UpdateStageRequest) (BatchResult, error)
	AssignClients(ctx context.Context, req AssignClientsRequest) (BatchResult, error)
	DeleteClients(ctx context.Context, req DeleteClientsRequest) (BatchResult, error)
	// RefreshCompaniesHouse runs in the background; the returned result
	// carries the job id to poll while status is processing.
	RefreshCompaniesHouse(ctx context.Context, req RefreshCompaniesHouseRequest) (BatchResult, error)
	GetJob(ctx context.Context, id string) (BatchResult, error)
	// CleanupExpired reaps job rows past their ExpiresAt. Scheduler hook.
	CleanupExpired(ctx context.Context) (int64, error)
}
