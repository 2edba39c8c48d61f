package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActivityLog is one append-only audit entry. Rows are never updated;
// hard-deleting a client clears ClientID but keeps the entry.
type ActivityLog struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    *snowflake.ID     `gorm:"index" json:"user_id,omitempty"`
	Action    string            `gorm:"not null;index" json:"action"`
	ClientID  *snowflake.ID     `gorm:"index" json:"client_id,omitempty"`
	Details   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"details,omitempty"`
	IPAddress *string           `json:"ip_address,omitempty"`
	UserAgent *string           `json:"user_agent,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_logs" }

// ActivityCursor is the keyset position for ledger pagination.
type ActivityCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
