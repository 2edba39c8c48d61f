package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/internal/actorcontext"
	"github.com/numericalz/practicehub/internal/assignment"
	"github.com/numericalz/practicehub/internal/bulk/domain"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/companieshouse"
	"github.com/numericalz/practicehub/internal/config"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Practice *config.PracticeConfigHolder
	Repo     domain.Repository

	ClientSvc   clientdomain.Service
	VATSvc      vatdomain.Service
	AccountsSvc accountsdomain.Service
	ActivitySvc activitydomain.Service
	Syncer      companieshouse.Syncer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	practice *config.PracticeConfigHolder
	repo     domain.Repository

	clientSvc   clientdomain.Service
	vatSvc      vatdomain.Service
	accountsSvc accountsdomain.Service
	activitySvc activitydomain.Service
	syncer      companieshouse.Syncer

	refreshDelay time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("bulk.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		practice:     p.Practice,
		repo:         p.Repo,
		clientSvc:    p.ClientSvc,
		vatSvc:       p.VATSvc,
		accountsSvc:  p.AccountsSvc,
		activitySvc:  p.ActivitySvc,
		syncer:       p.Syncer,
		refreshDelay: time.Duration(p.Config.CompaniesHouse.RequestDelay) * time.Millisecond,
	}
}

func (s *Service) CreateVATQuarters(ctx context.Context, req domain.CreateVATQuartersRequest) (domain.BatchResult, error) {
	return s.run(ctx, domain.KindCreateVATQuarters, req.ClientIDs, func(ctx context.Context, id string) error {
		_, err := s.vatSvc.CreateQuarter(ctx, vatdomain.CreateQuarterRequest{ClientID: id})
		return err
	})
}

func (s *Service) UpdateVATStage(ctx context.Context, req domain.UpdateStageRequest) (domain.BatchResult, error) {
	return s.run(ctx, domain.KindUpdateVATStage, req.IDs, func(ctx context.Context, id string) error {
		_, err := s.vatSvc.AdvanceStage(ctx, vatdomain.AdvanceStageRequest{
			ID:          id,
			TargetStage: req.TargetStage,
			Notes:       req.Notes,
		})
		return err
	})
}

func (s *Service) UpdateLtdStage(ctx context.Context, req domain.UpdateStageRequest) (domain.BatchResult, error) {
	return s.run(ctx, domain.KindUpdateLtdStage, req.IDs, s.advanceAccounts(workflow.TypeLtd, req))
}

func (s *Service) UpdateNonLtdStage(ctx context.Context, req domain.UpdateStageRequest) (domain.BatchResult, error) {
	return s.run(ctx, domain.KindUpdateNonLtdStage, req.IDs, s.advanceAccounts(workflow.TypeNonLtd, req))
}

func (s *Service) advanceAccounts(wfType workflow.Type, req domain.UpdateStageRequest) func(context.Context, string) error {
	return func(ctx context.Context, id string) error {
		_, err := s.accountsSvc.AdvanceStage(ctx, accountsdomain.AdvanceStageRequest{
			Type:        wfType,
			ID:          id,
			TargetStage: req.TargetStage,
			Notes:       req.Notes,
		})
		return err
	}
}

func (s *Service) AssignClients(ctx context.Context, req domain.AssignClientsRequest) (domain.BatchResult, error) {
	userID := req.UserID
	var update clientdomain.UpdateAssignmentsRequest
	switch req.Category {
	case assignment.CategoryGeneral:
		update.General = &userID
	case assignment.CategoryLtdAccounts:
		update.LtdAccounts = &userID
	case assignment.CategoryNonLtdAccounts:
		update.NonLtdAccounts = &userID
	case assignment.CategoryVAT:
		update.VAT = &userID
	default:
		return domain.BatchResult{}, domain.ErrInvalidCategory
	}

	return s.run(ctx, domain.KindAssignClients, req.ClientIDs, func(ctx context.Context, id string) error {
		item := update
		item.ID = id
		_, err := s.clientSvc.UpdateAssignments(ctx, item)
		return err
	})
}

func (s *Service) DeleteClients(ctx context.Context, req domain.DeleteClientsRequest) (domain.BatchResult, error) {
	return s.run(ctx, domain.KindDeleteClients, req.ClientIDs, func(ctx context.Context, id string) error {
		return s.clientSvc.HardDelete(ctx, id)
	})
}

// RefreshCompaniesHouse returns as soon as the job row exists; the paced
// registry sweep continues in the background and updates the row per item.
func (s *Service) RefreshCompaniesHouse(ctx context.Context, req domain.RefreshCompaniesHouseRequest) (domain.BatchResult, error) {
	ids, err := s.validateBatch(req.ClientIDs)
	if err != nil {
		return domain.BatchResult{}, err
	}

	job := s.newJob(ctx, domain.KindRefreshCompaniesHouse, len(ids))
	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		return domain.BatchResult{}, err
	}

	// Detach from the request context but keep the actor for history rows.
	bg := context.Background()
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		bg = actorcontext.WithActor(bg, actor)
	}
	go s.runRefresh(bg, job, ids)

	return domain.BatchResult{
		JobID:     job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Requested: job.RequestedCount,
	}, nil
}

func (s *Service) runRefresh(ctx context.Context, job *domain.BulkJob, ids []string) {
	items := make([]domain.ItemResult, 0, len(ids))
	for i, id := range ids {
		if i > 0 && s.refreshDelay > 0 {
			time.Sleep(s.refreshDelay)
		}
		_, err := s.syncer.RefreshClient(ctx, id)
		items = append(items, toItemResult(id, err))

		// Persist progress so the job can be polled mid-sweep.
		s.applyResults(job, items)
		if err := s.repo.Update(ctx, s.db, job); err != nil {
			s.log.Warn("bulk refresh progress update failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}
	s.finalize(ctx, job, items)
}

func (s *Service) GetJob(ctx context.Context, raw string) (domain.BatchResult, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return domain.BatchResult{}, domain.ErrInvalidID
	}
	job, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.BatchResult{}, err
	}
	if job == nil {
		return domain.BatchResult{}, domain.ErrJobNotFound
	}

	result := domain.BatchResult{
		JobID:     job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Requested: job.RequestedCount,
		Succeeded: job.SucceededCount,
		Failed:    job.FailedCount,
	}
	if len(job.Results) > 0 {
		if err := json.Unmarshal(job.Results, &result.Items); err != nil {
			s.log.Warn("bulk job results unreadable", zap.String("job_id", raw), zap.Error(err))
		}
	}
	return result, nil
}

func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.db, s.clock.Now())
}

// run executes one synchronous bulk operation: cardinality pre-check, one
// durable job row, per-item isolation, exact enumeration of outcomes.
func (s *Service) run(ctx context.Context, kind domain.Kind, rawIDs []string, itemFn func(context.Context, string) error) (domain.BatchResult, error) {
	ids, err := s.validateBatch(rawIDs)
	if err != nil {
		return domain.BatchResult{}, err
	}

	job := s.newJob(ctx, kind, len(ids))
	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		return domain.BatchResult{}, err
	}

	items := make([]domain.ItemResult, 0, len(ids))
	for _, id := range ids {
		items = append(items, toItemResult(id, itemFn(ctx, id)))
	}
	s.finalize(ctx, job, items)

	return domain.BatchResult{
		JobID:     job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Requested: job.RequestedCount,
		Succeeded: job.SucceededCount,
		Failed:    job.FailedCount,
		Items:     items,
	}, nil
}

// validateBatch rejects empty and oversized batches before anything is
// touched, and collapses duplicate ids so each appears once.
func (s *Service) validateBatch(rawIDs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(rawIDs))
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if max := s.practice.Get().MaxBulkBatchSize; len(ids) > max {
		return nil, domain.ErrBatchTooLarge
	}
	return ids, nil
}

func (s *Service) newJob(ctx context.Context, kind domain.Kind, requested int) *domain.BulkJob {
	now := s.clock.Now()
	ttl := time.Duration(s.practice.Get().BulkJobTTLHours) * time.Hour

	job := &domain.BulkJob{
		ID:             s.genID.Generate(),
		Kind:           kind,
		Status:         domain.StatusProcessing,
		RequestedCount: requested,
		CreatedAt:      now,
		StartedAt:      &now,
		ExpiresAt:      now.Add(ttl),
	}
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		job.ActorName = actor.Name
		if actor.ID != 0 {
			actorID := actor.ID
			job.ActorID = &actorID
		}
	}
	return job
}

func (s *Service) applyResults(job *domain.BulkJob, items []domain.ItemResult) {
	succeeded, failed := 0, 0
	for _, item := range items {
		if item.OK {
			succeeded++
		} else {
			failed++
		}
	}
	job.SucceededCount = succeeded
	job.FailedCount = failed
	if encoded, err := json.Marshal(items); err == nil {
		job.Results = encoded
	}
}

func (s *Service) finalize(ctx context.Context, job *domain.BulkJob, items []domain.ItemResult) {
	s.applyResults(job, items)

	now := s.clock.Now()
	job.FinishedAt = &now
	if job.SucceededCount == 0 && job.FailedCount > 0 {
		job.Status = domain.StatusFailed
	} else {
		job.Status = domain.StatusCompleted
	}

	if err := s.repo.Update(ctx, s.db, job); err != nil {
		s.log.Error("bulk job finalize failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}

	// One aggregate audit entry per bulk operation.
	s.activitySvc.Record(ctx, activitydomain.RecordRequest{
		Action: "bulk." + string(job.Kind),
		Details: map[string]any{
			"job_id":    job.ID.String(),
			"requested": job.RequestedCount,
			"succeeded": job.SucceededCount,
			"failed":    job.FailedCount,
		},
	})
}

func toItemResult(id string, err error) domain.ItemResult {
	if err != nil {
		return domain.ItemResult{ID: id, Error: err.Error()}
	}
	return domain.ItemResult{ID: id, OK: true}
}
