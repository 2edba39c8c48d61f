// Package scheduler runs the recurring practice jobs: VAT quarter
// auto-creation, the Companies House refresh sweep, deadline reminder
// emails, bulk job cleanup and the milestone consistency check.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	bulkdomain "github.com/numericalz/practicehub/internal/bulk/domain"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/companieshouse"
	"github.com/numericalz/practicehub/internal/config"
	"github.com/numericalz/practicehub/internal/notification"
	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Practice *config.PracticeConfigHolder

	VATSvc   vatdomain.Service
	BulkSvc  bulkdomain.Service
	Syncer   companieshouse.Syncer
	Notifier notification.Notifier
	UserRepo userdomain.Repository
	Metrics  *obsmetrics.Metrics `optional:"true"`

	Config Config `optional:"true"`
}

type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	practice *config.PracticeConfigHolder
	vatSvc   vatdomain.Service
	bulkSvc  bulkdomain.Service
	syncer   companieshouse.Syncer
	notifier notification.Notifier
	userRepo userdomain.Repository
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Practice == nil || p.VATSvc == nil || p.BulkSvc == nil || p.Syncer == nil || p.Notifier == nil || p.UserRepo == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      cfg,
		genID:    p.GenID,
		clock:    p.Clock,
		practice: p.Practice,
		vatSvc:   p.VATSvc,
		bulkSvc:  p.BulkSvc,
		syncer:   p.Syncer,
		notifier: p.Notifier,
		userRepo: p.UserRepo,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	err := fn(ctx)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.RecordJobRun(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Deadline overruns are soft failures: the next run picks the work
	// back up.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.RecordJobTimeout(name)
	}
	schedMetrics.RecordJobError(name, classifyJobReason(err))
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context) error
	}{
		{"ensure_vat_quarters", 30 * time.Second, s.EnsureVATQuartersJob},
		{"registry_refresh_sweep", 30 * time.Minute, s.RegistryRefreshSweepJob},
		{"deadline_reminders", 2 * time.Minute, s.DeadlineRemindersJob},
		{"bulk_job_cleanup", 30 * time.Second, s.BulkJobCleanupJob},
		{"milestone_consistency", 5 * time.Minute, s.MilestoneConsistencyJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, job.Timeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs enables everything (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// EnsureVATQuartersJob opens the VAT quarter covering now plus the
// configured lead window for every active VAT-registered client. Already
// existing quarters are skipped.
func (s *Scheduler) EnsureVATQuartersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "ensure_vat_quarters", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	leadDays := s.practice.Get().QuarterCreateLeadDays
	ref := s.clock.Now().AddDate(0, 0, leadDays)
	var jobErr error

	var clients []clientdomain.Client
	result := s.db.WithContext(ctx).
		Where("is_active = ? AND vat_enabled = ?", true, true).
		Order("id asc").
		FindInBatches(&clients, s.cfg.BatchSize, func(tx *gorm.DB, batch int) error {
			for i := range clients {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c := clients[i]
				_, err := s.vatSvc.CreateQuarter(ctx, vatdomain.CreateQuarterRequest{
					ClientID:      c.ID.String(),
					ReferenceDate: ref,
				})
				switch {
				case err == nil:
					run.AddProcessed(1)
				case errors.Is(err, vatdomain.ErrQuarterExists):
					// Already open, nothing to do.
				default:
					jobErr = errors.Join(jobErr, err)
					s.logJobError(ctx, run, "vat quarter auto-create failed", "ensure_vat_quarters", err,
						zap.String("client_id", c.ID.String()),
					)
				}
			}
			return nil
		})
	if result.Error != nil {
		jobErr = errors.Join(jobErr, result.Error)
	}

	obsmetrics.Scheduler().RecordBatchProcessed("ensure_vat_quarters", run.processedCount)
	return jobErr
}

// RegistryRefreshSweepJob refreshes every registry-linked client from
// Companies House. The syncer paces its own requests and holds a redis
// lock, so a concurrent sweep is a skip, not a failure.
func (s *Scheduler) RegistryRefreshSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "registry_refresh_sweep", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.syncer.RefreshAll(ctx)
	if err != nil {
		if errors.Is(err, companieshouse.ErrSweepInProgress) {
			s.logger(ctx).Debug("registry sweep already running, skipping")
			return nil
		}
		s.logJobError(ctx, run, "registry sweep failed", "registry_refresh_sweep", err)
		return err
	}

	run.AddProcessed(result.Refreshed)
	obsmetrics.Scheduler().RecordBatchProcessed("registry_refresh_sweep", result.Refreshed)
	if result.Failed > 0 {
		s.logger(ctx).Warn("registry sweep finished with failures",
			zap.Int("total", result.Total),
			zap.Int("refreshed", result.Refreshed),
			zap.Int("failed", result.Failed),
			zap.Int("skipped", result.Skipped),
		)
	}
	return nil
}

// BulkJobCleanupJob reaps bulk job rows past their retention window.
func (s *Scheduler) BulkJobCleanupJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "bulk_job_cleanup", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	reaped, err := s.bulkSvc.CleanupExpired(ctx)
	if err != nil {
		s.logJobError(ctx, run, "bulk job cleanup failed", "bulk_job_cleanup", err)
		return err
	}
	run.AddProcessed(int(reaped))
	obsmetrics.Scheduler().RecordBatchProcessed("bulk_job_cleanup", int(reaped))
	return nil
}

func classifyJobReason(err error) string {
	if err == nil {
		return obsmetrics.SchedulerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return obsmetrics.SchedulerJobReasonDeadlineExceeded
	}
	return obsmetrics.SchedulerJobReasonUnknown
}
