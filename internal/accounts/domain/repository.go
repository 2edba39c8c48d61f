package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/workflow"
)

// ListWorkflowFilter narrows List queries. Cursor keyset-paginates on
// (accounts_due_date asc, id asc).
type ListWorkflowFilter struct {
	ClientID        *snowflake.ID
	AssignedUserID  *snowflake.ID
	Stage           workflow.Stage
	DueBefore       *time.Time
	DueAfter        *time.Time
	UncompletedOnly bool
	Cursor          *WorkflowCursor
	Limit           int
}

type WorkflowCursor struct {
	ID          snowflake.ID
	AccountsDue time.Time
}

// Repositories receive the *gorm.DB so services can hand them a
// transaction handle.
type LtdRepository interface {
	Insert(ctx context.Context, db *gorm.DB, wf *LtdAccountsWorkflow) error
	Update(ctx context.Context, db *gorm.DB, wf *LtdAccountsWorkflow) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LtdAccountsWorkflow, error)
	FindOpenByPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, periodEnd time.Time) (*LtdAccountsWorkflow, error)
	List(ctx context.Context, db *gorm.DB, filter ListWorkflowFilter) ([]*LtdAccountsWorkflow, error)
	InsertHistory(ctx context.Context, db *gorm.DB, h *LtdWorkflowHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, workflowID snowflake.ID) ([]*LtdWorkflowHistory, error)
}

type NonLtdRepository interface {
	Insert(ctx context.Context, db *gorm.DB, wf *NonLtdAccountsWorkflow) error
	Update(ctx context.Context, db *gorm.DB, wf *NonLtdAccountsWorkflow) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*NonLtdAccountsWorkflow, error)
	FindOpenByPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, periodEnd time.Time) (*NonLtdAccountsWorkflow, error)
	List(ctx context.Context, db *gorm.DB, filter ListWorkflowFilter) ([]*NonLtdAccountsWorkflow, error)
	InsertHistory(ctx context.Context, db *gorm.DB, h *NonLtdWorkflowHistory) error
	ListHistory(ctx context.Context, db *gorm.DB, workflowID snowflake.ID) ([]*NonLtdWorkflowHistory, error)
}
