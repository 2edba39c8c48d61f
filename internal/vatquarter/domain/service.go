package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/workflow"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mock.go -package=mocks

type CreateQuarterRequest struct {
	ClientID string
	// ReferenceDate selects the period; quarter boundaries are derived
	// from the client's quarter group, never chosen freely.
	ReferenceDate time.Time
}

type AdvanceStageRequest struct {
	ID          string
	TargetStage workflow.Stage
	Notes       string
}

type AssignRequest struct {
	ID string
	// UserID zero clears the assignment.
	UserID snowflake.ID
}

type GetQuarterRequest struct {
	ID string
}

type ListQuarterRequest struct {
	pagination.Pagination
	ClientID        string
	AssignedUserID  string
	Stage           workflow.Stage
	DueBefore       *time.Time
	DueAfter        *time.Time
	UncompletedOnly bool
}

type ListQuarterFilter struct {
	ClientID        *snowflake.ID
	AssignedUserID  *snowflake.ID
	Stage           workflow.Stage
	DueBefore       *time.Time
	DueAfter        *time.Time
	UncompletedOnly bool
	Cursor          *QuarterCursor
}

// QuarterCursor is the keyset position for filing_due_date asc, id asc
// paging.
type QuarterCursor struct {
	ID        snowflake.ID
	FilingDue time.Time
}

type ListQuarterResponse struct {
	pagination.PageInfo
	Quarters []VATQuarter `json:"vat_quarters"`
}

type Service interface {
	CreateQuarter(context.Context, CreateQuarterRequest) (VATQuarter, error)
	AdvanceStage(context.Context, AdvanceStageRequest) (VATQuarter, error)
	Assign(context.Context, AssignRequest) (VATQuarter, error)
	GetByID(context.Context, GetQuarterRequest) (VATQuarter, error)
	List(context.Context, ListQuarterRequest) (ListQuarterResponse, error)
	History(ctx context.Context, id string) ([]VATQuarterHistory, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, quarter *VATQuarter) error
	Update(ctx context.Context, db *gorm.DB, quarter *VATQuarter) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VATQuarter, error)
	FindOpenByPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, period string) (*VATQuarter, error)
	List(ctx context.Context, db *gorm.DB, filter ListQuarterFilter, page pagination.Pagination) ([]*VATQuarter, error)
	InsertHistory(ctx context.Context, db *gorm.DB, row *VATQuarterHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, quarterID snowflake.ID) ([]*VATQuarterHistory, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrQuarterNotFound     = errors.New("vat_quarter_not_found")
	ErrQuarterExists       = errors.New("vat_quarter_exists")
	ErrClientNotFound      = errors.New("client_not_found")
	ErrClientNotVATEnabled = errors.New("client_not_vat_enabled")
	ErrInvalidStage        = workflow.ErrInvalidStage
)
