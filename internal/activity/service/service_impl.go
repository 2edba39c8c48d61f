package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/internal/actorcontext"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		s.log.Warn("activity entry dropped", zap.Error(domain.ErrInvalidAction))
		return
	}

	payload := map[string]any{}
	for key, value := range req.Details {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := actorcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := domain.ActivityLog{
		ID:        s.genID.Generate(),
		Action:    action,
		ClientID:  req.ClientID,
		Details:   datatypes.JSONMap(payload),
		CreatedAt: s.clock.Now(),
	}
	if actor, ok := actorcontext.ActorFromContext(ctx); ok && actor.ID != 0 {
		id := actor.ID
		entry.UserID = &id
	}
	if ip := actorcontext.IPAddressFromContext(ctx); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := actorcontext.UserAgentFromContext(ctx); ua != "" {
		entry.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write activity log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req domain.ListActivityRequest) (domain.ListActivityResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return domain.ListActivityResponse{}, domain.ErrInvalidTimeRange
	}

	filter := domain.ListFilter{
		Action:  strings.TrimSpace(req.Action),
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
	}
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListActivityResponse{}, domain.ErrInvalidID
		}
		filter.UserID = &id
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return domain.ListActivityResponse{}, domain.ErrInvalidID
		}
		filter.ClientID = &id
	}

	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListActivityResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return domain.ListActivityResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListActivityResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.ActivityCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}
	filter.Limit = int(pageSize)

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListActivityResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *domain.ActivityLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	logs := make([]domain.ActivityLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	resp := domain.ListActivityResponse{ActivityLogs: logs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
