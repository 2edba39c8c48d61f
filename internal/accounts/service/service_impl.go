package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/accounts/domain"
	"github.com/numericalz/practicehub/internal/actorcontext"
	"github.com/numericalz/practicehub/internal/assignment"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/cloudmetrics"
	"github.com/numericalz/practicehub/internal/deadline"
	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
	"github.com/numericalz/practicehub/internal/workflow"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	LtdRepo    domain.LtdRepository
	NonLtdRepo domain.NonLtdRepository
	ClientRepo clientdomain.Repository
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	ltdRepo    domain.LtdRepository
	nonLtdRepo domain.NonLtdRepository
	clientRepo clientdomain.Repository
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("accounts.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		ltdRepo:    p.LtdRepo,
		nonLtdRepo: p.NonLtdRepo,
		clientRepo: p.ClientRepo,
		metrics:    p.Metrics,
	}
}

// filingPeriod is the derived statutory period for one workflow.
type filingPeriod struct {
	start time.Time
	end   time.Time
	due   time.Time
	ctDue time.Time
}

func (s *Service) derivePeriod(client *clientdomain.Client) (filingPeriod, error) {
	data := client.AccountingData()
	end := deadline.AccountingReferenceDate(data)
	if end == nil {
		return filingPeriod{}, domain.ErrPeriodUnresolvable
	}

	var period filingPeriod
	period.end = *end
	period.ctDue = deadline.CorporationTaxDue(*end)

	if data.LastAccountsMadeUpTo == nil && data.IncorporationDate != nil {
		// First period runs from incorporation and gets the extended
		// 21-month filing deadline.
		period.start = *data.IncorporationDate
		period.due = deadline.FirstYearAccountsDeadline(*data.IncorporationDate)
		return period, nil
	}

	period.start = end.AddDate(-1, 0, 1)
	period.due = deadline.AccountsFilingDeadline(*end)
	return period, nil
}

func (s *Service) CreateWorkflow(ctx context.Context, req domain.CreateWorkflowRequest) (*domain.Workflow, error) {
	clientID, err := parseID(req.ClientID)
	if err != nil {
		return nil, err
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrClientNotFound
	}

	switch req.Type {
	case workflow.TypeLtd:
		if client.CompanyCategory != clientdomain.CategoryLimitedCompany {
			return nil, domain.ErrClientCategoryMismatch
		}
	case workflow.TypeNonLtd:
		if client.CompanyCategory == clientdomain.CategoryLimitedCompany {
			return nil, domain.ErrClientCategoryMismatch
		}
	default:
		return nil, domain.ErrInvalidType
	}

	period, err := s.derivePeriod(client)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if req.Type == workflow.TypeLtd {
		existing, err := s.ltdRepo.FindOpenByPeriod(ctx, s.db, client.ID, period.end)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, domain.ErrWorkflowExists
		}
		wf := domain.LtdAccountsWorkflow{
			ID:                s.genID.Generate(),
			ClientID:          client.ID,
			FilingPeriodStart: period.start,
			FilingPeriodEnd:   period.end,
			AccountsDueDate:   period.due,
			CTDueDate:         period.ctDue,
			CurrentStage:      workflow.InitialStage(workflow.TypeLtd),
			AssignedUserID:    assignment.Resolve(assignment.CategoryLtdAccounts, client, nil),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.ltdRepo.Insert(ctx, s.db, &wf); err != nil {
			return nil, err
		}
		return viewFromLtd(&wf), nil
	}

	existing, err := s.nonLtdRepo.FindOpenByPeriod(ctx, s.db, client.ID, period.end)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrWorkflowExists
	}
	wf := domain.NonLtdAccountsWorkflow{
		ID:                s.genID.Generate(),
		ClientID:          client.ID,
		FilingPeriodStart: period.start,
		FilingPeriodEnd:   period.end,
		AccountsDueDate:   period.due,
		CurrentStage:      workflow.InitialStage(workflow.TypeNonLtd),
		AssignedUserID:    assignment.Resolve(assignment.CategoryNonLtdAccounts, client, nil),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.nonLtdRepo.Insert(ctx, s.db, &wf); err != nil {
		return nil, err
	}
	return viewFromNonLtd(&wf), nil
}

func (s *Service) AdvanceStage(ctx context.Context, req domain.AdvanceStageRequest) (*domain.Workflow, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	actor, _ := actorcontext.ActorFromContext(ctx)
	now := s.clock.Now()
	notes := strings.TrimSpace(req.Notes)

	switch req.Type {
	case workflow.TypeLtd:
		var updated domain.LtdAccountsWorkflow
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			wf, err := s.ltdRepo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if wf == nil {
				return domain.ErrWorkflowNotFound
			}

			change, err := workflow.Transition(wf, req.TargetStage, now, actor.Name)
			if err != nil {
				return err
			}
			if change.Completed && req.TargetStage == workflow.StageFiledToCompaniesHouse && wf.FiledDate == nil {
				wf.FiledDate = &now
			}
			wf.UpdatedAt = now

			if err := s.ltdRepo.Update(ctx, tx, wf); err != nil {
				return err
			}
			history := domain.LtdWorkflowHistory{
				ID:             s.genID.Generate(),
				WorkflowID:     wf.ID,
				FromStage:      change.From,
				ToStage:        change.To,
				StageChangedAt: change.ChangedAt,
				UserName:       actor.Name,
				UserEmail:      actor.Email,
				UserRole:       actor.Role,
				Notes:          notes,
				CreatedAt:      now,
			}
			if actor.ID != 0 {
				actorID := actor.ID
				history.UserID = &actorID
			}
			if err := s.ltdRepo.InsertHistory(ctx, tx, &history); err != nil {
				return err
			}

			updated = *wf
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.metrics.RecordStageTransition(ctx, string(workflow.TypeLtd), string(req.TargetStage))
		if updated.IsCompleted && req.TargetStage == workflow.StageFiledToCompaniesHouse {
			cloudmetrics.RecordWorkflowFiled(string(workflow.TypeLtd))
			s.metrics.RecordWorkflowFiled(ctx, string(workflow.TypeLtd))
		}
		return viewFromLtd(&updated), nil

	case workflow.TypeNonLtd:
		var updated domain.NonLtdAccountsWorkflow
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			wf, err := s.nonLtdRepo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if wf == nil {
				return domain.ErrWorkflowNotFound
			}

			change, err := workflow.Transition(wf, req.TargetStage, now, actor.Name)
			if err != nil {
				return err
			}
			if change.Completed && req.TargetStage == workflow.StageFiledToHMRC && wf.FiledDate == nil {
				wf.FiledDate = &now
			}
			wf.UpdatedAt = now

			if err := s.nonLtdRepo.Update(ctx, tx, wf); err != nil {
				return err
			}
			history := domain.NonLtdWorkflowHistory{
				ID:             s.genID.Generate(),
				WorkflowID:     wf.ID,
				FromStage:      change.From,
				ToStage:        change.To,
				StageChangedAt: change.ChangedAt,
				UserName:       actor.Name,
				UserEmail:      actor.Email,
				UserRole:       actor.Role,
				Notes:          notes,
				CreatedAt:      now,
			}
			if actor.ID != 0 {
				actorID := actor.ID
				history.UserID = &actorID
			}
			if err := s.nonLtdRepo.InsertHistory(ctx, tx, &history); err != nil {
				return err
			}

			updated = *wf
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.metrics.RecordStageTransition(ctx, string(workflow.TypeNonLtd), string(req.TargetStage))
		if updated.IsCompleted && req.TargetStage == workflow.StageFiledToHMRC {
			cloudmetrics.RecordWorkflowFiled(string(workflow.TypeNonLtd))
			s.metrics.RecordWorkflowFiled(ctx, string(workflow.TypeNonLtd))
		}
		return viewFromNonLtd(&updated), nil
	}
	return nil, domain.ErrInvalidType
}

func (s *Service) Assign(ctx context.Context, req domain.AssignRequest) (*domain.Workflow, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	switch req.Type {
	case workflow.TypeLtd:
		wf, err := s.ltdRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if wf == nil {
			return nil, domain.ErrWorkflowNotFound
		}
		wf.AssignedUserID = assigneeFor(req.UserID)
		wf.UpdatedAt = now
		if err := s.ltdRepo.Update(ctx, s.db, wf); err != nil {
			return nil, err
		}
		return viewFromLtd(wf), nil

	case workflow.TypeNonLtd:
		wf, err := s.nonLtdRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if wf == nil {
			return nil, domain.ErrWorkflowNotFound
		}
		wf.AssignedUserID = assigneeFor(req.UserID)
		wf.UpdatedAt = now
		if err := s.nonLtdRepo.Update(ctx, s.db, wf); err != nil {
			return nil, err
		}
		return viewFromNonLtd(wf), nil
	}
	return nil, domain.ErrInvalidType
}

func (s *Service) GetByID(ctx context.Context, req domain.GetWorkflowRequest) (*domain.Workflow, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case workflow.TypeLtd:
		wf, err := s.ltdRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if wf == nil {
			return nil, domain.ErrWorkflowNotFound
		}
		return viewFromLtd(wf), nil

	case workflow.TypeNonLtd:
		wf, err := s.nonLtdRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if wf == nil {
			return nil, domain.ErrWorkflowNotFound
		}
		return viewFromNonLtd(wf), nil
	}
	return nil, domain.ErrInvalidType
}

func (s *Service) List(ctx context.Context, req domain.ListWorkflowRequest) ([]*domain.Workflow, *pagination.PageInfo, error) {
	filter := domain.ListWorkflowFilter{
		Stage:           workflow.Stage(strings.TrimSpace(req.Stage)),
		DueBefore:       req.DueBefore,
		DueAfter:        req.DueAfter,
		UncompletedOnly: req.UncompletedOnly,
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return nil, nil, err
		}
		filter.ClientID = &id
	}
	if raw := strings.TrimSpace(req.AssignedUserID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return nil, nil, err
		}
		filter.AssignedUserID = &id
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, nil, domain.ErrInvalidPageToken
		}
		due, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return nil, nil, domain.ErrInvalidPageToken
		}
		id, err := parseID(decoded.ID)
		if err != nil {
			return nil, nil, err
		}
		filter.Cursor = &domain.WorkflowCursor{ID: id, AccountsDue: due}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	filter.Limit = pageSize

	var views []*domain.Workflow
	switch req.Type {
	case workflow.TypeLtd:
		rows, err := s.ltdRepo.List(ctx, s.db, filter)
		if err != nil {
			return nil, nil, err
		}
		views = make([]*domain.Workflow, 0, len(rows))
		for _, row := range rows {
			views = append(views, viewFromLtd(row))
		}

	case workflow.TypeNonLtd:
		rows, err := s.nonLtdRepo.List(ctx, s.db, filter)
		if err != nil {
			return nil, nil, err
		}
		views = make([]*domain.Workflow, 0, len(rows))
		for _, row := range rows {
			views = append(views, viewFromNonLtd(row))
		}

	default:
		return nil, nil, domain.ErrInvalidType
	}

	pageInfo := pagination.BuildCursorPageInfo(views, int32(pageSize), func(view *domain.Workflow) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        view.ID.String(),
			CreatedAt: view.AccountsDueDate.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(views) > pageSize {
		views = views[:pageSize]
	}
	return views, pageInfo, nil
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) ([]*domain.HistoryEntry, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case workflow.TypeLtd:
		wf, err := s.ltdRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if wf == nil {
			return nil, domain.ErrWorkflowNotFound
		}
		rows, err := s.ltdRepo.ListHistory(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		entries := make([]*domain.HistoryEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, &domain.HistoryEntry{
				ID:             row.ID,
				WorkflowID:     row.WorkflowID,
				FromStage:      row.FromStage,
				ToStage:        row.ToStage,
				StageChangedAt: row.StageChangedAt,
				UserID:         row.UserID,
				UserName:       row.UserName,
				UserEmail:      row.UserEmail,
				UserRole:       row.UserRole,
				Notes:          row.Notes,
			})
		}
		return entries, nil

	case workflow.TypeNonLtd:
		wf, err := s.nonLtdRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if wf == nil {
			return nil, domain.ErrWorkflowNotFound
		}
		rows, err := s.nonLtdRepo.ListHistory(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		entries := make([]*domain.HistoryEntry, 0, len(rows))
		for _, row := range rows {
			entries = append(entries, &domain.HistoryEntry{
				ID:             row.ID,
				WorkflowID:     row.WorkflowID,
				FromStage:      row.FromStage,
				ToStage:        row.ToStage,
				StageChangedAt: row.StageChangedAt,
				UserID:         row.UserID,
				UserName:       row.UserName,
				UserEmail:      row.UserEmail,
				UserRole:       row.UserRole,
				Notes:          row.Notes,
			})
		}
		return entries, nil
	}
	return nil, domain.ErrInvalidType
}

func assigneeFor(userID snowflake.ID) *snowflake.ID {
	if userID == 0 {
		return nil
	}
	id := userID
	return &id
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func viewFromLtd(wf *domain.LtdAccountsWorkflow) *domain.Workflow {
	ctDue := wf.CTDueDate
	view := &domain.Workflow{
		Type:              workflow.TypeLtd,
		ID:                wf.ID,
		ClientID:          wf.ClientID,
		FilingPeriodStart: wf.FilingPeriodStart,
		FilingPeriodEnd:   wf.FilingPeriodEnd,
		AccountsDueDate:   wf.AccountsDueDate,
		CTDueDate:         &ctDue,
		CurrentStage:      wf.CurrentStage,
		StageDisplay:      workflow.DisplayName(wf.CurrentStage),
		ProgressPercent:   workflow.ProgressPercent(workflow.TypeLtd, wf.CurrentStage),
		IsCompleted:       wf.IsCompleted,
		FiledDate:         wf.FiledDate,
		AssignedUserID:    wf.AssignedUserID,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
	view.Milestones = appendMilestones(nil,
		milestone{workflow.StagePaperworkChased, wf.ChaseStartedDate, wf.ChaseStartedByName},
		milestone{workflow.StagePaperworkReceived, wf.PaperworkReceivedDate, wf.PaperworkReceivedBy},
		milestone{workflow.StageWorkInProgress, wf.WorkStartedDate, wf.WorkStartedByName},
		milestone{workflow.StageDiscussWithManager, wf.ManagerDiscussionDate, wf.ManagerDiscussionByName},
		milestone{workflow.StageReviewedByManager, wf.ManagerReviewedDate, wf.ManagerReviewedByName},
		milestone{workflow.StageReviewedByPartner, wf.PartnerReviewedDate, wf.PartnerReviewedByName},
		milestone{workflow.StageSentToClientHelloSign, wf.SentToClientDate, wf.SentToClientByName},
		milestone{workflow.StageApprovedByClient, wf.ClientApprovedDate, wf.ClientApprovedByName},
		milestone{workflow.StageSubmissionApprovedPartner, wf.PartnerApprovedDate, wf.PartnerApprovedByName},
		milestone{workflow.StageFiledToCompaniesHouse, wf.FiledToRegistriesDate, wf.FiledToRegistriesByName},
	)
	return view
}

func viewFromNonLtd(wf *domain.NonLtdAccountsWorkflow) *domain.Workflow {
	view := &domain.Workflow{
		Type:              workflow.TypeNonLtd,
		ID:                wf.ID,
		ClientID:          wf.ClientID,
		FilingPeriodStart: wf.FilingPeriodStart,
		FilingPeriodEnd:   wf.FilingPeriodEnd,
		AccountsDueDate:   wf.AccountsDueDate,
		CurrentStage:      wf.CurrentStage,
		StageDisplay:      workflow.DisplayName(wf.CurrentStage),
		ProgressPercent:   workflow.ProgressPercent(workflow.TypeNonLtd, wf.CurrentStage),
		IsCompleted:       wf.IsCompleted,
		FiledDate:         wf.FiledDate,
		AssignedUserID:    wf.AssignedUserID,
		CreatedAt:         wf.CreatedAt,
		UpdatedAt:         wf.UpdatedAt,
	}
	view.Milestones = appendMilestones(nil,
		milestone{workflow.StagePaperworkChased, wf.ChaseStartedDate, wf.ChaseStartedByName},
		milestone{workflow.StagePaperworkReceived, wf.PaperworkReceivedDate, wf.PaperworkReceivedBy},
		milestone{workflow.StageWorkInProgress, wf.WorkStartedDate, wf.WorkStartedByName},
		milestone{workflow.StageDiscussWithManager, wf.ManagerDiscussionDate, wf.ManagerDiscussionByName},
		milestone{workflow.StageApprovedByPartner, wf.PartnerApprovedDate, wf.PartnerApprovedByName},
		milestone{workflow.StageSentToClient, wf.SentToClientDate, wf.SentToClientByName},
		milestone{workflow.StageApprovedByClient, wf.ClientApprovedDate, wf.ClientApprovedByName},
		milestone{workflow.StageFiledToHMRC, wf.FiledToHMRCDate, wf.FiledToHMRCByName},
	)
	return view
}

type milestone struct {
	stage  workflow.Stage
	date   *time.Time
	byName string
}

func appendMilestones(dst []domain.Milestone, candidates ...milestone) []domain.Milestone {
	for _, c := range candidates {
		if c.date == nil {
			continue
		}
		dst = append(dst, domain.Milestone{Stage: c.stage, Date: *c.date, ByName: c.byName})
	}
	return dst
}
