package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/workflow"
)

// LtdAccountsWorkflow tracks one statutory accounts filing period for a
// limited company. Milestone pairs are write-once.
type LtdAccountsWorkflow struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID snowflake.ID `gorm:"not null;index" json:"client_id"`

	FilingPeriodStart time.Time `gorm:"not null" json:"filing_period_start"`
	FilingPeriodEnd   time.Time `gorm:"not null;index" json:"filing_period_end"`
	AccountsDueDate   time.Time `gorm:"not null;index" json:"accounts_due_date"`
	CTDueDate         time.Time `gorm:"column:ct_due_date;not null" json:"ct_due_date"`

	CurrentStage   workflow.Stage `gorm:"not null" json:"current_stage"`
	IsCompleted    bool           `gorm:"not null;default:false;index" json:"is_completed"`
	FiledDate      *time.Time     `json:"filed_date,omitempty"`
	AssignedUserID *snowflake.ID  `gorm:"index" json:"assigned_user_id,omitempty"`

	ChaseStartedDate        *time.Time `json:"chase_started_date,omitempty"`
	ChaseStartedByName      string     `json:"chase_started_by_name,omitempty"`
	PaperworkReceivedDate   *time.Time `json:"paperwork_received_date,omitempty"`
	PaperworkReceivedBy     string     `gorm:"column:paperwork_received_by_name" json:"paperwork_received_by_name,omitempty"`
	WorkStartedDate         *time.Time `json:"work_started_date,omitempty"`
	WorkStartedByName       string     `json:"work_started_by_name,omitempty"`
	ManagerDiscussionDate   *time.Time `json:"manager_discussion_date,omitempty"`
	ManagerDiscussionByName string     `json:"manager_discussion_by_name,omitempty"`
	ManagerReviewedDate     *time.Time `json:"manager_reviewed_date,omitempty"`
	ManagerReviewedByName   string     `json:"manager_reviewed_by_name,omitempty"`
	PartnerReviewedDate     *time.Time `json:"partner_reviewed_date,omitempty"`
	PartnerReviewedByName   string     `json:"partner_reviewed_by_name,omitempty"`
	SentToClientDate        *time.Time `json:"sent_to_client_date,omitempty"`
	SentToClientByName      string     `json:"sent_to_client_by_name,omitempty"`
	ClientApprovedDate      *time.Time `json:"client_approved_date,omitempty"`
	ClientApprovedByName    string     `json:"client_approved_by_name,omitempty"`
	PartnerApprovedDate     *time.Time `json:"partner_approved_date,omitempty"`
	PartnerApprovedByName   string     `json:"partner_approved_by_name,omitempty"`
	FiledToRegistriesDate   *time.Time `json:"filed_to_registries_date,omitempty"`
	FiledToRegistriesByName string     `json:"filed_to_registries_by_name,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LtdAccountsWorkflow) TableName() string { return "ltd_accounts_workflows" }

func (w *LtdAccountsWorkflow) WorkflowType() workflow.Type { return workflow.TypeLtd }
func (w *LtdAccountsWorkflow) Stage() workflow.Stage       { return w.CurrentStage }

func (w *LtdAccountsWorkflow) SetStage(stage workflow.Stage, completed bool) {
	w.CurrentStage = stage
	w.IsCompleted = completed
}

func (w *LtdAccountsWorkflow) ApplyMilestone(stage workflow.Stage, at time.Time, userName string) {
	switch stage {
	case workflow.StagePaperworkChased:
		if w.ChaseStartedDate == nil {
			w.ChaseStartedDate = &at
			w.ChaseStartedByName = userName
		}
	case workflow.StagePaperworkReceived:
		if w.PaperworkReceivedDate == nil {
			w.PaperworkReceivedDate = &at
			w.PaperworkReceivedBy = userName
		}
	case workflow.StageWorkInProgress:
		if w.WorkStartedDate == nil {
			w.WorkStartedDate = &at
			w.WorkStartedByName = userName
		}
	case workflow.StageDiscussWithManager:
		if w.ManagerDiscussionDate == nil {
			w.ManagerDiscussionDate = &at
			w.ManagerDiscussionByName = userName
		}
	case workflow.StageReviewedByManager:
		if w.ManagerReviewedDate == nil {
			w.ManagerReviewedDate = &at
			w.ManagerReviewedByName = userName
		}
	case workflow.StageReviewedByPartner:
		if w.PartnerReviewedDate == nil {
			w.PartnerReviewedDate = &at
			w.PartnerReviewedByName = userName
		}
	case workflow.StageSentToClientHelloSign:
		if w.SentToClientDate == nil {
			w.SentToClientDate = &at
			w.SentToClientByName = userName
		}
	case workflow.StageApprovedByClient:
		if w.ClientApprovedDate == nil {
			w.ClientApprovedDate = &at
			w.ClientApprovedByName = userName
		}
	case workflow.StageSubmissionApprovedPartner:
		if w.PartnerApprovedDate == nil {
			w.PartnerApprovedDate = &at
			w.PartnerApprovedByName = userName
		}
	case workflow.StageFiledToCompaniesHouse:
		if w.FiledToRegistriesDate == nil {
			w.FiledToRegistriesDate = &at
			w.FiledToRegistriesByName = userName
		}
	}
}

// NonLtdAccountsWorkflow tracks one accounts period for an unincorporated
// client. There is no Companies House leg, so no CT due date.
type NonLtdAccountsWorkflow struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID snowflake.ID `gorm:"not null;index" json:"client_id"`

	FilingPeriodStart time.Time `gorm:"not null" json:"filing_period_start"`
	FilingPeriodEnd   time.Time `gorm:"not null;index" json:"filing_period_end"`
	AccountsDueDate   time.Time `gorm:"not null;index" json:"accounts_due_date"`

	CurrentStage   workflow.Stage `gorm:"not null" json:"current_stage"`
	IsCompleted    bool           `gorm:"not null;default:false;index" json:"is_completed"`
	FiledDate      *time.Time     `json:"filed_date,omitempty"`
	AssignedUserID *snowflake.ID  `gorm:"index" json:"assigned_user_id,omitempty"`

	ChaseStartedDate        *time.Time `json:"chase_started_date,omitempty"`
	ChaseStartedByName      string     `json:"chase_started_by_name,omitempty"`
	PaperworkReceivedDate   *time.Time `json:"paperwork_received_date,omitempty"`
	PaperworkReceivedBy     string     `gorm:"column:paperwork_received_by_name" json:"paperwork_received_by_name,omitempty"`
	WorkStartedDate         *time.Time `json:"work_started_date,omitempty"`
	WorkStartedByName       string     `json:"work_started_by_name,omitempty"`
	ManagerDiscussionDate   *time.Time `json:"manager_discussion_date,omitempty"`
	ManagerDiscussionByName string     `json:"manager_discussion_by_name,omitempty"`
	PartnerApprovedDate     *time.Time `json:"partner_approved_date,omitempty"`
	PartnerApprovedByName   string     `json:"partner_approved_by_name,omitempty"`
	SentToClientDate        *time.Time `json:"sent_to_client_date,omitempty"`
	SentToClientByName      string     `json:"sent_to_client_by_name,omitempty"`
	ClientApprovedDate      *time.Time `json:"client_approved_date,omitempty"`
	ClientApprovedByName    string     `json:"client_approved_by_name,omitempty"`
	FiledToHMRCDate         *time.Time `gorm:"column:filed_to_hmrc_date" json:"filed_to_hmrc_date,omitempty"`
	FiledToHMRCByName       string     `gorm:"column:filed_to_hmrc_by_name" json:"filed_to_hmrc_by_name,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (NonLtdAccountsWorkflow) TableName() string { return "non_ltd_accounts_workflows" }

func (w *NonLtdAccountsWorkflow) WorkflowType() workflow.Type { return workflow.TypeNonLtd }
func (w *NonLtdAccountsWorkflow) Stage() workflow.Stage       { return w.CurrentStage }

func (w *NonLtdAccountsWorkflow) SetStage(stage workflow.Stage, completed bool) {
	w.CurrentStage = stage
	w.IsCompleted = completed
}

func (w *NonLtdAccountsWorkflow) ApplyMilestone(stage workflow.Stage, at time.Time, userName string) {
	switch stage {
	case workflow.StagePaperworkChased:
		if w.ChaseStartedDate == nil {
			w.ChaseStartedDate = &at
			w.ChaseStartedByName = userName
		}
	case workflow.StagePaperworkReceived:
		if w.PaperworkReceivedDate == nil {
			w.PaperworkReceivedDate = &at
			w.PaperworkReceivedBy = userName
		}
	case workflow.StageWorkInProgress:
		if w.WorkStartedDate == nil {
			w.WorkStartedDate = &at
			w.WorkStartedByName = userName
		}
	case workflow.StageDiscussWithManager:
		if w.ManagerDiscussionDate == nil {
			w.ManagerDiscussionDate = &at
			w.ManagerDiscussionByName = userName
		}
	case workflow.StageApprovedByPartner:
		if w.PartnerApprovedDate == nil {
			w.PartnerApprovedDate = &at
			w.PartnerApprovedByName = userName
		}
	case workflow.StageSentToClient:
		if w.SentToClientDate == nil {
			w.SentToClientDate = &at
			w.SentToClientByName = userName
		}
	case workflow.StageApprovedByClient:
		if w.ClientApprovedDate == nil {
			w.ClientApprovedDate = &at
			w.ClientApprovedByName = userName
		}
	case workflow.StageFiledToHMRC:
		if w.FiledToHMRCDate == nil {
			w.FiledToHMRCDate = &at
			w.FiledToHMRCByName = userName
		}
	}
}

// LtdWorkflowHistory and NonLtdWorkflowHistory are the append-only
// transition ledgers with a user snapshot per row.
type LtdWorkflowHistory struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	WorkflowID snowflake.ID   `gorm:"not null;index" json:"workflow_id"`
	FromStage  workflow.Stage `json:"from_stage"`
	ToStage    workflow.Stage `gorm:"not null" json:"to_stage"`

	StageChangedAt time.Time     `gorm:"not null" json:"stage_changed_at"`
	UserID         *snowflake.ID `json:"user_id,omitempty"`
	UserName       string        `json:"user_name,omitempty"`
	UserEmail      string        `json:"user_email,omitempty"`
	UserRole       string        `json:"user_role,omitempty"`
	Notes          string        `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (LtdWorkflowHistory) TableName() string { return "ltd_workflow_histories" }

type NonLtdWorkflowHistory struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	WorkflowID snowflake.ID   `gorm:"not null;index" json:"workflow_id"`
	FromStage  workflow.Stage `json:"from_stage"`
	ToStage    workflow.Stage `gorm:"not null" json:"to_stage"`

	StageChangedAt time.Time     `gorm:"not null" json:"stage_changed_at"`
	UserID         *snowflake.ID `json:"user_id,omitempty"`
	UserName       string        `json:"user_name,omitempty"`
	UserEmail      string        `json:"user_email,omitempty"`
	UserRole       string        `json:"user_role,omitempty"`
	Notes          string        `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (NonLtdWorkflowHistory) TableName() string { return "non_ltd_workflow_histories" }
