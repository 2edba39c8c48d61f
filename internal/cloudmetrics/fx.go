package cloudmetrics

import (
	"context"
	"sync"
	"time"

	"github.com/numericalz/practicehub/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 15 * time.Minute

var registerOnce sync.Once

type registryResult struct {
	fx.Out

	Registry *prometheus.Registry `name:"monitoring_registry"`
}

type registerParam struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Registry  *prometheus.Registry `name:"monitoring_registry"`
	Pusher    Pusher               `optional:"true"`
	Logger    *zap.Logger
	DB        *gorm.DB
}

var Module = fx.Module("monitoring.push",
	fx.Provide(func() registryResult {
		return registryResult{Registry: prometheus.NewRegistry()}
	}),
	fx.Provide(NewPusher),
	fx.Invoke(Register),
)

// Register wires the domain recorder and starts the periodic push loop.
// Failures are logged and never block practice workflows.
func Register(p registerParam) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if !p.Config.Monitoring.Enabled || p.Pusher == nil {
		return
	}

	registerOnce.Do(func() {
		setRecorder(&recorder{metrics: newMetrics(p.Registry)})

		ctx, cancel := context.WithCancel(context.Background())
		doneCh := make(chan struct{})
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(context.Context) error {
				logger.Info("starting monitoring push worker")
				go func() {
					defer close(doneCh)
					ticker := time.NewTicker(pushInterval)
					defer ticker.Stop()

					pushOnce(ctx, p.Pusher, p.Registry, p.DB, logger)
					for {
						select {
						case <-ticker.C:
							pushOnce(ctx, p.Pusher, p.Registry, p.DB, logger)
						case <-ctx.Done():
							logger.Info("stopping monitoring push worker")
							return
						}
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-doneCh:
					return nil
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
			},
		})
	})
}

func pushOnce(ctx context.Context, pusher Pusher, registry *prometheus.Registry, db *gorm.DB, logger *zap.Logger) {
	updateActiveClientCounts(ctx, db)

	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := pusher.Push(pushCtx, registry); err != nil {
		logger.Warn("monitoring push failed", zap.Error(err))
	}
}

func updateActiveClientCounts(ctx context.Context, db *gorm.DB) {
	if db == nil {
		return
	}
	type row struct {
		CompanyCategory string
		Total           int
	}
	var rows []row
	err := db.WithContext(ctx).
		Table("clients").
		Select("company_category, COUNT(*) AS total").
		Where("is_active = ?", true).
		Group("company_category").
		Scan(&rows).Error
	if err != nil {
		return
	}
	for _, r := range rows {
		UpdateActiveClients(r.CompanyCategory, r.Total)
	}
}
