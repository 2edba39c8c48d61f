package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/deadline"
	"github.com/numericalz/practicehub/internal/workflow"
)

// VATQuarter is one VAT filing period for a VAT-enabled client. Quarter
// boundaries are always derived from quarter group + reference date.
// Milestone pairs are write-once: the first transition into the matching
// stage stamps them, later visits never overwrite.
type VATQuarter struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID snowflake.ID `gorm:"not null;index" json:"client_id"`

	QuarterPeriod    string                `gorm:"not null;index" json:"quarter_period"`
	QuarterStartDate time.Time             `gorm:"not null" json:"quarter_start_date"`
	QuarterEndDate   time.Time             `gorm:"not null" json:"quarter_end_date"`
	FilingDueDate    time.Time             `gorm:"not null;index" json:"filing_due_date"`
	QuarterGroup     deadline.QuarterGroup `gorm:"not null" json:"quarter_group"`

	CurrentStage   workflow.Stage `gorm:"not null" json:"current_stage"`
	IsCompleted    bool           `gorm:"not null;default:false;index" json:"is_completed"`
	FiledDate      *time.Time     `json:"filed_date,omitempty"`
	AssignedUserID *snowflake.ID  `gorm:"index" json:"assigned_user_id,omitempty"`

	ChaseStartedDate      *time.Time `json:"chase_started_date,omitempty"`
	ChaseStartedByName    string     `json:"chase_started_by_name,omitempty"`
	PaperworkReceivedDate *time.Time `json:"paperwork_received_date,omitempty"`
	PaperworkReceivedBy   string     `gorm:"column:paperwork_received_by_name" json:"paperwork_received_by_name,omitempty"`
	WorkStartedDate       *time.Time `json:"work_started_date,omitempty"`
	WorkStartedByName     string     `json:"work_started_by_name,omitempty"`
	WorkFinishedDate      *time.Time `json:"work_finished_date,omitempty"`
	WorkFinishedByName    string     `json:"work_finished_by_name,omitempty"`
	SentToClientDate      *time.Time `json:"sent_to_client_date,omitempty"`
	SentToClientByName    string     `json:"sent_to_client_by_name,omitempty"`
	ClientApprovedDate    *time.Time `json:"client_approved_date,omitempty"`
	ClientApprovedByName  string     `json:"client_approved_by_name,omitempty"`
	FiledToHMRCDate       *time.Time `gorm:"column:filed_to_hmrc_date" json:"filed_to_hmrc_date,omitempty"`
	FiledToHMRCByName     string     `gorm:"column:filed_to_hmrc_by_name" json:"filed_to_hmrc_by_name,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (VATQuarter) TableName() string { return "vat_quarters" }

func (q *VATQuarter) WorkflowType() workflow.Type { return workflow.TypeVAT }
func (q *VATQuarter) Stage() workflow.Stage       { return q.CurrentStage }

func (q *VATQuarter) SetStage(stage workflow.Stage, completed bool) {
	q.CurrentStage = stage
	q.IsCompleted = completed
}

func (q *VATQuarter) ApplyMilestone(stage workflow.Stage, at time.Time, userName string) {
	switch stage {
	case workflow.StagePaperworkChased:
		if q.ChaseStartedDate == nil {
			q.ChaseStartedDate = &at
			q.ChaseStartedByName = userName
		}
	case workflow.StagePaperworkReceived:
		if q.PaperworkReceivedDate == nil {
			q.PaperworkReceivedDate = &at
			q.PaperworkReceivedBy = userName
		}
	case workflow.StageWorkInProgress:
		if q.WorkStartedDate == nil {
			q.WorkStartedDate = &at
			q.WorkStartedByName = userName
		}
	case workflow.StageReviewPendingManager:
		if q.WorkFinishedDate == nil {
			q.WorkFinishedDate = &at
			q.WorkFinishedByName = userName
		}
	case workflow.StageEmailedToClient:
		if q.SentToClientDate == nil {
			q.SentToClientDate = &at
			q.SentToClientByName = userName
		}
	case workflow.StageClientApproved:
		if q.ClientApprovedDate == nil {
			q.ClientApprovedDate = &at
			q.ClientApprovedByName = userName
		}
	case workflow.StageFiledToHMRC:
		if q.FiledToHMRCDate == nil {
			q.FiledToHMRCDate = &at
			q.FiledToHMRCByName = userName
		}
	}
}

// VATQuarterHistory is the append-only transition ledger with the acting
// user snapshotted at transition time.
type VATQuarterHistory struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	VATQuarterID snowflake.ID   `gorm:"not null;index" json:"vat_quarter_id"`
	FromStage    workflow.Stage `json:"from_stage"`
	ToStage      workflow.Stage `gorm:"not null" json:"to_stage"`

	StageChangedAt time.Time     `gorm:"not null" json:"stage_changed_at"`
	UserID         *snowflake.ID `json:"user_id,omitempty"`
	UserName       string        `json:"user_name,omitempty"`
	UserEmail      string        `json:"user_email,omitempty"`
	UserRole       string        `json:"user_role,omitempty"`
	Notes          string        `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (VATQuarterHistory) TableName() string { return "vat_quarter_histories" }
