package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type RecordRequest struct {
	Action   string
	ClientID *snowflake.ID
	Details  map[string]any
}

type ListActivityRequest struct {
	pagination.Pagination
	Action   string
	UserID   string
	ClientID string
	StartAt  *time.Time
	EndAt    *time.Time
}

type ListFilter struct {
	Action   string
	UserID   *snowflake.ID
	ClientID *snowflake.ID
	StartAt  *time.Time
	EndAt    *time.Time
	Cursor   *ActivityCursor
	Limit    int
}

type ListActivityResponse struct {
	pagination.PageInfo
	ActivityLogs []ActivityLog `json:"activity_logs"`
}

type Service interface {
	// Record appends an entry, taking the acting user and request
	// metadata from the context. Fire-and-forget: failures are logged
	// and never propagate to the caller.
	Record(ctx context.Context, req RecordRequest)
	List(ctx context.Context, req ListActivityRequest) (ListActivityResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *ActivityLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ActivityLog, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidID        = errors.New("invalid_id")
)
