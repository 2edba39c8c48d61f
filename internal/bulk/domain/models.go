package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind names one bulk operation family.
type Kind string

const (
	KindCreateVATQuarters     Kind = "create_vat_quarters"
	KindUpdateVATStage        Kind = "update_vat_stage"
	KindUpdateLtdStage        Kind = "update_ltd_stage"
	KindUpdateNonLtdStage     Kind = "update_non_ltd_stage"
	KindAssignClients         Kind = "assign_clients"
	KindDeleteClients         Kind = "delete_clients"
	KindRefreshCompaniesHouse Kind = "refresh_companies_house"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// BulkJob is the durable record of one bulk operation. Rows outlive the
// request so long sweeps can be polled, and are reaped after ExpiresAt.
type BulkJob struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	Kind   Kind         `gorm:"not null;index" json:"kind"`
	Status Status       `gorm:"not null;index" json:"status"`

	RequestedCount int            `gorm:"not null" json:"requested_count"`
	SucceededCount int            `gorm:"not null;default:0" json:"succeeded_count"`
	FailedCount    int            `gorm:"not null;default:0" json:"failed_count"`
	Results        datatypes.JSON `json:"results,omitempty"`

	ActorID   *snowflake.ID `json:"actor_id,omitempty"`
	ActorName string        `json:"actor_name,omitempty"`

	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
}

func (BulkJob) TableName() string { return "bulk_jobs" }

// ItemResult is the outcome for one requested id. Every id submitted to a
// bulk operation appears exactly once.
type ItemResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BatchResult is the caller-facing summary of one bulk job.
type BatchResult struct {
	JobID     snowflake.ID `json:"job_id"`
	Kind      Kind         `json:"kind"`
	Status    Status       `json:"status"`
	Requested int          `json:"requested"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items,omitempty"`
}
