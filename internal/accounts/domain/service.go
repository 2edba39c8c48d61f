package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/numericalz/practicehub/internal/deadline"
	"github.com/numericalz/practicehub/internal/workflow"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

//go:generate mockgen -source=service.go -destination=mocks/service.go -package=mocks

var (
	ErrInvalidID              = errors.New("invalid_workflow_id")
	ErrInvalidType            = errors.New("invalid_workflow_type")
	ErrWorkflowNotFound       = errors.New("workflow_not_found")
	ErrWorkflowExists         = errors.New("workflow_already_exists_for_period")
	ErrClientNotFound         = errors.New("client_not_found")
	ErrClientCategoryMismatch = errors.New("client_category_mismatch")
	ErrInvalidPageToken       = errors.New("invalid_page_token")

	// ErrInvalidStage and ErrPeriodUnresolvable re-export the underlying
	// causes so callers match on one package.
	ErrInvalidStage       = workflow.ErrInvalidStage
	ErrPeriodUnresolvable = deadline.ErrDeadlineUnresolvable
)

// Milestone is one write-once stage stamp in display order.
type Milestone struct {
	Stage  workflow.Stage `json:"stage"`
	Date   time.Time      `json:"date"`
	ByName string         `json:"by_name,omitempty"`
}

// Workflow is the type-neutral view returned by the service. CTDueDate is
// nil for non-limited workflows.
type Workflow struct {
	Type workflow.Type `json:"workflow_type"`
	ID   snowflake.ID  `json:"id"`

	ClientID          snowflake.ID `json:"client_id"`
	FilingPeriodStart time.Time    `json:"filing_period_start"`
	FilingPeriodEnd   time.Time    `json:"filing_period_end"`
	AccountsDueDate   time.Time    `json:"accounts_due_date"`
	CTDueDate         *time.Time   `json:"ct_due_date,omitempty"`

	CurrentStage    workflow.Stage `json:"current_stage"`
	StageDisplay    string         `json:"stage_display"`
	ProgressPercent int            `json:"progress_percent"`
	IsCompleted     bool           `json:"is_completed"`
	FiledDate       *time.Time     `json:"filed_date,omitempty"`
	AssignedUserID  *snowflake.ID  `json:"assigned_user_id,omitempty"`

	Milestones []Milestone `json:"milestones,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEntry is one transition row with the acting user snapshot.
type HistoryEntry struct {
	ID             snowflake.ID   `json:"id"`
	WorkflowID     snowflake.ID   `json:"workflow_id"`
	FromStage      workflow.Stage `json:"from_stage,omitempty"`
	ToStage        workflow.Stage `json:"to_stage"`
	StageChangedAt time.Time      `json:"stage_changed_at"`
	UserID         *snowflake.ID  `json:"user_id,omitempty"`
	UserName       string         `json:"user_name,omitempty"`
	UserEmail      string         `json:"user_email,omitempty"`
	UserRole       string         `json:"user_role,omitempty"`
	Notes          string         `json:"notes,omitempty"`
}

type CreateWorkflowRequest struct {
	Type     workflow.Type `json:"workflow_type"`
	ClientID string        `json:"client_id"`

	// ReferenceDate anchors the filing period. Zero means "now": the
	// period whose year end the reference date falls at or before.
	ReferenceDate time.Time `json:"reference_date,omitempty"`
}

type AdvanceStageRequest struct {
	Type        workflow.Type  `json:"workflow_type"`
	ID          string         `json:"id"`
	TargetStage workflow.Stage `json:"target_stage"`
	Notes       string         `json:"notes,omitempty"`
}

type AssignRequest struct {
	Type   workflow.Type `json:"workflow_type"`
	ID     string        `json:"id"`
	UserID snowflake.ID  `json:"user_id"` // zero clears the assignment
}

type GetWorkflowRequest struct {
	Type workflow.Type
	ID   string
}

type ListWorkflowRequest struct {
	pagination.Pagination

	Type            workflow.Type `form:"workflow_type"`
	ClientID        string        `form:"client_id"`
	AssignedUserID  string        `form:"assigned_user_id"`
	Stage           string        `form:"stage"`
	DueBefore       *time.Time    `form:"due_before"`
	DueAfter        *time.Time    `form:"due_after"`
	UncompletedOnly bool          `form:"uncompleted_only"`
}

type HistoryRequest struct {
	Type workflow.Type
	ID   string
}

type Service interface {
	CreateWorkflow(ctx context.Context, req CreateWorkflowRequest) (*Workflow, error)
	AdvanceStage(ctx context.Context, req AdvanceStageRequest) (*Workflow, error)
	Assign(ctx context.Context, req AssignRequest) (*Workflow, error)
	GetByID(ctx context.Context, req GetWorkflowRequest) (*Workflow, error)
	List(ctx context.Context, req ListWorkflowRequest) ([]*Workflow, *pagination.PageInfo, error)
	History(ctx context.Context, req HistoryRequest) ([]*HistoryEntry, error)
}
