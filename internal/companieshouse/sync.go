package companieshouse

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/cloudmetrics"
	"github.com/numericalz/practicehub/internal/config"
	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
)

const (
	metricSource = "companies_house"

	sweepLockKey = "ch:sweep:lock"
	sweepLockTTL = 30 * time.Minute
)

var (
	ErrNoCompanyNumber = errors.New("client_has_no_company_number")
	ErrSweepInProgress = errors.New("registry_sweep_in_progress")
)

// SweepResult summarises one pass over the registry-linked client book.
type SweepResult struct {
	Total     int `json:"total"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Syncer refreshes client records from the register, one client or the
// whole book.
type Syncer interface {
	RefreshClient(ctx context.Context, clientID string) (clientdomain.Client, error)
	RefreshAll(ctx context.Context) (SweepResult, error)
}

type SyncParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	Clock      clock.Clock
	Fetcher    Fetcher
	Redis      *redis.Client `optional:"true"`
	ClientSvc  clientdomain.Service
	ClientRepo clientdomain.Repository
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type syncer struct {
	db         *gorm.DB
	log        *zap.Logger
	clk        clock.Clock
	fetcher    Fetcher
	rdb        *redis.Client
	clientSvc  clientdomain.Service
	clientRepo clientdomain.Repository
	metrics    *obsmetrics.Metrics

	requestDelay time.Duration
}

func NewSyncer(p SyncParams) Syncer {
	return &syncer{
		db:           p.DB,
		log:          p.Log.Named("companieshouse.sync"),
		clk:          p.Clock,
		fetcher:      p.Fetcher,
		rdb:          p.Redis,
		clientSvc:    p.ClientSvc,
		clientRepo:   p.ClientRepo,
		metrics:      p.Metrics,
		requestDelay: time.Duration(p.Config.CompaniesHouse.RequestDelay) * time.Millisecond,
	}
}

func (s *syncer) RefreshClient(ctx context.Context, clientID string) (clientdomain.Client, error) {
	record, err := s.clientSvc.GetByID(ctx, clientdomain.GetClientRequest{ID: clientID})
	if err != nil {
		return clientdomain.Client{}, err
	}
	if record.CompanyNumber == nil || *record.CompanyNumber == "" {
		return clientdomain.Client{}, ErrNoCompanyNumber
	}

	profile, err := s.fetcher.GetCompanyProfile(ctx, *record.CompanyNumber)
	if err != nil {
		cloudmetrics.RecordRegistrySyncFailure("refresh_client")
		s.metrics.RecordRegistrySync(ctx, metricSource, "fetch_error")
		return clientdomain.Client{}, err
	}

	updated, err := s.clientSvc.ApplyRegistryProfile(ctx, clientID, *profile)
	if err != nil {
		cloudmetrics.RecordRegistrySyncFailure("apply_profile")
		s.metrics.RecordRegistrySync(ctx, metricSource, "apply_error")
		return clientdomain.Client{}, err
	}

	cloudmetrics.RecordRegistrySync(metricSource)
	s.metrics.RecordRegistrySync(ctx, metricSource, "ok")
	return updated, nil
}

// RefreshAll walks every registry-linked client, pacing requests so the
// sweep stays inside the Companies House rate limit. A redis lock keeps
// concurrent instances from sweeping at the same time; without redis the
// caller is trusted to not run two sweeps.
func (s *syncer) RefreshAll(ctx context.Context) (SweepResult, error) {
	release, err := s.acquireSweepLock(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	defer release()

	clients, err := s.clientRepo.ListRegistryLinked(ctx, s.db)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Total: len(clients)}
	for i, record := range clients {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if i > 0 && s.requestDelay > 0 {
			select {
			case <-time.After(s.requestDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		_, err := s.RefreshClient(ctx, record.ID.String())
		switch {
		case err == nil:
			result.Refreshed++
		case errors.Is(err, ErrCompanyNotFound), errors.Is(err, ErrNoCompanyNumber):
			// A dissolved or mis-keyed number is not a sweep failure.
			result.Skipped++
			s.log.Info("skipped registry refresh",
				zap.String("client_id", record.ID.String()),
				zap.Error(err),
			)
		case errors.Is(err, ErrRateLimited):
			result.Failed++
			s.log.Warn("registry rate limit hit, aborting sweep",
				zap.Int("refreshed", result.Refreshed),
				zap.Int("remaining", result.Total-i-1),
			)
			return result, err
		default:
			result.Failed++
			s.log.Warn("registry refresh failed",
				zap.String("client_id", record.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.log.Info("registry sweep finished",
		zap.Int("total", result.Total),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *syncer) acquireSweepLock(ctx context.Context) (func(), error) {
	if s.rdb == nil {
		return func() {}, nil
	}
	ok, err := s.rdb.SetNX(ctx, sweepLockKey, s.clk.Now().Format(time.RFC3339), sweepLockTTL).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSweepInProgress
	}
	return func() {
		if err := s.rdb.Del(context.Background(), sweepLockKey).Err(); err != nil {
			s.log.Warn("sweep lock release failed", zap.Error(err))
		}
	}, nil
}
