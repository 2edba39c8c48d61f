package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/numericalz/practicehub/internal/accounts"
	"github.com/numericalz/practicehub/internal/activity"
	"github.com/numericalz/practicehub/internal/bulk"
	"github.com/numericalz/practicehub/internal/client"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/companieshouse"
	"github.com/numericalz/practicehub/internal/config"
	"github.com/numericalz/practicehub/internal/migration"
	"github.com/numericalz/practicehub/internal/notification"
	"github.com/numericalz/practicehub/internal/observability"
	"github.com/numericalz/practicehub/internal/providers/email"
	"github.com/numericalz/practicehub/internal/scheduler"
	"github.com/numericalz/practicehub/internal/user"
	"github.com/numericalz/practicehub/internal/vatquarter"
	"github.com/numericalz/practicehub/pkg/db"
)

// Jobs-only deployment: the scheduler loop plus the domain services it
// drives, with no API surface beyond /health and /metrics.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		user.Module,
		client.Module,
		vatquarter.Module,
		accounts.Module,
		activity.Module,
		companieshouse.Module,
		bulk.Module,
		email.Module,
		notification.Module,

		scheduler.Module,
		migration.Module,
		fx.Invoke(runOps),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func runOps(lc fx.Lifecycle, cfg config.Config) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
