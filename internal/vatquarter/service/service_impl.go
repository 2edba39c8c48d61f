package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/actorcontext"
	"github.com/numericalz/practicehub/internal/assignment"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/cloudmetrics"
	"github.com/numericalz/practicehub/internal/deadline"
	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
	"github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ClientRepo clientdomain.Repository
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	clientRepo clientdomain.Repository
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("vatquarter.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		clientRepo: p.ClientRepo,
		metrics:    p.Metrics,
	}
}

func (s *Service) CreateQuarter(ctx context.Context, req domain.CreateQuarterRequest) (domain.VATQuarter, error) {
	clientID, err := parseID(req.ClientID)
	if err != nil {
		return domain.VATQuarter{}, err
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, clientID)
	if err != nil {
		return domain.VATQuarter{}, err
	}
	if client == nil {
		return domain.VATQuarter{}, domain.ErrClientNotFound
	}
	if !client.VATEnabled || !deadline.ValidQuarterGroup(client.VATQuarterGroup) {
		return domain.VATQuarter{}, domain.ErrClientNotVATEnabled
	}

	ref := req.ReferenceDate
	if ref.IsZero() {
		ref = s.clock.Now()
	}
	info, err := deadline.CalculateVATQuarter(client.VATQuarterGroup, ref)
	if err != nil {
		return domain.VATQuarter{}, err
	}

	existing, err := s.repo.FindOpenByPeriod(ctx, s.db, client.ID, info.PeriodKey)
	if err != nil {
		return domain.VATQuarter{}, err
	}
	if existing != nil {
		return domain.VATQuarter{}, domain.ErrQuarterExists
	}

	now := s.clock.Now()
	quarter := domain.VATQuarter{
		ID:               s.genID.Generate(),
		ClientID:         client.ID,
		QuarterPeriod:    info.PeriodKey,
		QuarterStartDate: info.StartDate,
		QuarterEndDate:   info.EndDate,
		FilingDueDate:    info.FilingDueDate,
		QuarterGroup:     info.Group,
		CurrentStage:     workflow.InitialStage(workflow.TypeVAT),
		AssignedUserID:   assignment.Resolve(assignment.CategoryVAT, client, nil),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, &quarter); err != nil {
		return domain.VATQuarter{}, err
	}
	return quarter, nil
}

func (s *Service) AdvanceStage(ctx context.Context, req domain.AdvanceStageRequest) (domain.VATQuarter, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.VATQuarter{}, err
	}

	actor, _ := actorcontext.ActorFromContext(ctx)
	now := s.clock.Now()

	var updated domain.VATQuarter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quarter, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if quarter == nil {
			return domain.ErrQuarterNotFound
		}

		change, err := workflow.Transition(quarter, req.TargetStage, now, actor.Name)
		if err != nil {
			return err
		}
		if change.Completed && req.TargetStage == workflow.StageFiledToHMRC && quarter.FiledDate == nil {
			quarter.FiledDate = &now
		}
		quarter.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, quarter); err != nil {
			return err
		}

		history := domain.VATQuarterHistory{
			ID:             s.genID.Generate(),
			VATQuarterID:   quarter.ID,
			FromStage:      change.From,
			ToStage:        change.To,
			StageChangedAt: change.ChangedAt,
			UserName:       actor.Name,
			UserEmail:      actor.Email,
			UserRole:       actor.Role,
			Notes:          strings.TrimSpace(req.Notes),
			CreatedAt:      now,
		}
		if actor.ID != 0 {
			actorID := actor.ID
			history.UserID = &actorID
		}
		if err := s.repo.InsertHistory(ctx, tx, &history); err != nil {
			return err
		}

		updated = *quarter
		return nil
	})
	if err != nil {
		return domain.VATQuarter{}, err
	}

	s.metrics.RecordStageTransition(ctx, string(workflow.TypeVAT), string(req.TargetStage))
	if updated.IsCompleted && req.TargetStage == workflow.StageFiledToHMRC {
		cloudmetrics.RecordWorkflowFiled(string(workflow.TypeVAT))
		s.metrics.RecordWorkflowFiled(ctx, string(workflow.TypeVAT))
	}
	return updated, nil
}

func (s *Service) Assign(ctx context.Context, req domain.AssignRequest) (domain.VATQuarter, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.VATQuarter{}, err
	}

	quarter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.VATQuarter{}, err
	}
	if quarter == nil {
		return domain.VATQuarter{}, domain.ErrQuarterNotFound
	}

	if req.UserID == 0 {
		quarter.AssignedUserID = nil
	} else {
		userID := req.UserID
		quarter.AssignedUserID = &userID
	}
	quarter.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, quarter); err != nil {
		return domain.VATQuarter{}, err
	}
	return *quarter, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetQuarterRequest) (domain.VATQuarter, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.VATQuarter{}, err
	}
	quarter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.VATQuarter{}, err
	}
	if quarter == nil {
		return domain.VATQuarter{}, domain.ErrQuarterNotFound
	}
	return *quarter, nil
}

func (s *Service) List(ctx context.Context, req domain.ListQuarterRequest) (domain.ListQuarterResponse, error) {
	filter := domain.ListQuarterFilter{
		Stage:           req.Stage,
		DueBefore:       req.DueBefore,
		DueAfter:        req.DueAfter,
		UncompletedOnly: req.UncompletedOnly,
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.ListQuarterResponse{}, err
		}
		filter.ClientID = &id
	}
	if raw := strings.TrimSpace(req.AssignedUserID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.ListQuarterResponse{}, err
		}
		filter.AssignedUserID = &id
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListQuarterResponse{}, domain.ErrInvalidID
		}
		due, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return domain.ListQuarterResponse{}, domain.ErrInvalidID
		}
		id, err := parseID(decoded.ID)
		if err != nil {
			return domain.ListQuarterResponse{}, err
		}
		filter.Cursor = &domain.QuarterCursor{ID: id, FilingDue: due}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListQuarterResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(quarter *domain.VATQuarter) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        quarter.ID.String(),
			CreatedAt: quarter.FilingDueDate.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	quarters := make([]domain.VATQuarter, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		quarters = append(quarters, *item)
	}

	resp := domain.ListQuarterResponse{Quarters: quarters}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) History(ctx context.Context, raw string) ([]domain.VATQuarterHistory, error) {
	id, err := parseID(raw)
	if err != nil {
		return nil, err
	}
	quarter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if quarter == nil {
		return nil, domain.ErrQuarterNotFound
	}

	items, err := s.repo.ListHistory(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.VATQuarterHistory, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		rows = append(rows, *item)
	}
	return rows, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
