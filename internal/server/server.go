// Package server exposes the practice REST API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/accounts"
	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	"github.com/numericalz/practicehub/internal/activity"
	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/internal/authorization"
	"github.com/numericalz/practicehub/internal/bulk"
	bulkdomain "github.com/numericalz/practicehub/internal/bulk/domain"
	"github.com/numericalz/practicehub/internal/client"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/cloudmetrics"
	"github.com/numericalz/practicehub/internal/companieshouse"
	"github.com/numericalz/practicehub/internal/config"
	"github.com/numericalz/practicehub/internal/dashboard"
	"github.com/numericalz/practicehub/internal/notification"
	"github.com/numericalz/practicehub/internal/observability"
	obsmiddleware "github.com/numericalz/practicehub/internal/observability/logger"
	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
	obstracing "github.com/numericalz/practicehub/internal/observability/tracing"
	"github.com/numericalz/practicehub/internal/providers/email"
	"github.com/numericalz/practicehub/internal/user"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
	"github.com/numericalz/practicehub/internal/vatquarter"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	authorization.Module,
	activity.Module,
	user.Module,
	client.Module,
	vatquarter.Module,
	accounts.Module,
	companieshouse.Module,
	bulk.Module,
	dashboard.Module,
	email.Module,
	notification.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	genID        *snowflake.Node
	authzSvc     authorization.Service
	userSvc      userdomain.Service
	clientSvc    clientdomain.Service
	vatSvc       vatdomain.Service
	accountsSvc  accountsdomain.Service
	bulkSvc      bulkdomain.Service
	activitySvc  activitydomain.Service
	dashboardSvc dashboard.Service
	syncer       companieshouse.Syncer
	fetcher      companieshouse.Fetcher
	notifier     notification.Notifier
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	AuthzSvc     authorization.Service
	UserSvc      userdomain.Service
	ClientSvc    clientdomain.Service
	VATSvc       vatdomain.Service
	AccountsSvc  accountsdomain.Service
	BulkSvc      bulkdomain.Service
	ActivitySvc  activitydomain.Service
	DashboardSvc dashboard.Service
	Syncer       companieshouse.Syncer
	Fetcher      companieshouse.Fetcher
	Notifier     notification.Notifier
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		authzSvc:     p.AuthzSvc,
		userSvc:      p.UserSvc,
		clientSvc:    p.ClientSvc,
		vatSvc:       p.VATSvc,
		accountsSvc:  p.AccountsSvc,
		bulkSvc:      p.BulkSvc,
		activitySvc:  p.ActivitySvc,
		dashboardSvc: p.DashboardSvc,
		syncer:       p.Syncer,
		fetcher:      p.Fetcher,
		notifier:     p.Notifier,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(s.ActorRequired())

	clients := api.Group("/clients")
	{
		clients.GET("", s.requireAuthz(authorization.ObjectClient, authorization.ActionView), s.ListClients)
		clients.POST("", s.requireAuthz(authorization.ObjectClient, authorization.ActionCreate), s.CreateClient)
		clients.GET("/:id", s.requireAuthz(authorization.ObjectClient, authorization.ActionView), s.GetClientByID)
		clients.PATCH("/:id", s.requireAuthz(authorization.ObjectClient, authorization.ActionUpdate), s.UpdateClient)
		clients.DELETE("/:id", s.requireAuthz(authorization.ObjectClient, authorization.ActionDelete), s.DeactivateClient)
		clients.POST("/:id/reactivate", s.requireAuthz(authorization.ObjectClient, authorization.ActionUpdate), s.ReactivateClient)
		clients.PUT("/:id/assignments", s.requireAuthz(authorization.ObjectClient, authorization.ActionAssign), s.UpdateClientAssignments)
		clients.POST("/:id/registry-refresh", s.requireAuthz(authorization.ObjectClient, authorization.ActionUpdate), s.RefreshClientFromRegistry)
	}

	api.GET("/companies-house/:number", s.requireAuthz(authorization.ObjectClient, authorization.ActionView), s.LookupCompanyProfile)

	quarters := api.Group("/vat-quarters")
	{
		quarters.GET("", s.requireAuthz(authorization.ObjectVATQuarter, authorization.ActionView), s.ListVATQuarters)
		quarters.POST("", s.requireAuthz(authorization.ObjectVATQuarter, authorization.ActionCreate), s.CreateVATQuarter)
		quarters.GET("/:id", s.requireAuthz(authorization.ObjectVATQuarter, authorization.ActionView), s.GetVATQuarterByID)
		quarters.GET("/:id/history", s.requireAuthz(authorization.ObjectVATQuarter, authorization.ActionView), s.GetVATQuarterHistory)
		quarters.POST("/:id/stage", s.requireAuthz(authorization.ObjectVATQuarter, authorization.ActionAdvance), s.AdvanceVATQuarterStage)
		quarters.PUT("/:id/assignee", s.requireAuthz(authorization.ObjectVATQuarter, authorization.ActionAssign), s.AssignVATQuarter)
	}

	s.registerAccountsRoutes(api, "/ltd-workflows", authorization.ObjectLtdWorkflow, workflow.TypeLtd)
	s.registerAccountsRoutes(api, "/non-ltd-workflows", authorization.ObjectNonLtdWorkflow, workflow.TypeNonLtd)

	bulkGroup := api.Group("/bulk")
	bulkGroup.Use(s.requireAuthz(authorization.ObjectBulk, authorization.ActionRun))
	{
		bulkGroup.POST("/vat-quarters", s.BulkCreateVATQuarters)
		bulkGroup.POST("/vat-quarters/stage", s.BulkUpdateVATStage)
		bulkGroup.POST("/ltd-workflows/stage", s.BulkUpdateLtdStage)
		bulkGroup.POST("/non-ltd-workflows/stage", s.BulkUpdateNonLtdStage)
		bulkGroup.POST("/clients/assign", s.BulkAssignClients)
		bulkGroup.POST("/clients/delete", s.BulkDeleteClients)
		bulkGroup.POST("/clients/registry-refresh", s.BulkRefreshCompaniesHouse)
		bulkGroup.GET("/jobs/:id", s.GetBulkJob)
	}

	dash := api.Group("/dashboard")
	dash.Use(s.requireAuthz(authorization.ObjectDashboard, authorization.ActionView))
	{
		dash.GET("/workload/:userId", s.GetUserWorkload)
		dash.GET("/team", s.GetTeamView)
		dash.GET("/deadlines", s.GetDeadlineSummary)
	}

	api.GET("/activity-logs", s.requireAuthz(authorization.ObjectActivityLog, authorization.ActionView), s.ListActivityLogs)

	users := api.Group("/users")
	{
		users.GET("", s.requireAuthz(authorization.ObjectUser, authorization.ActionView), s.ListUsers)
		users.POST("", s.requireAuthz(authorization.ObjectUser, authorization.ActionCreate), s.CreateUser)
		users.GET("/:id", s.requireAuthz(authorization.ObjectUser, authorization.ActionView), s.GetUserByID)
		users.PATCH("/:id", s.requireAuthz(authorization.ObjectUser, authorization.ActionUpdate), s.UpdateUser)
		users.DELETE("/:id", s.requireAuthz(authorization.ObjectUser, authorization.ActionDelete), s.DeactivateUser)
		users.POST("/:id/reactivate", s.requireAuthz(authorization.ObjectUser, authorization.ActionUpdate), s.ReactivateUser)
	}
}

func (s *Server) registerAccountsRoutes(api *gin.RouterGroup, prefix string, object string, workflowType workflow.Type) {
	group := api.Group(prefix)
	{
		group.GET("", s.requireAuthz(object, authorization.ActionView), s.ListAccountsWorkflows(workflowType))
		group.POST("", s.requireAuthz(object, authorization.ActionCreate), s.CreateAccountsWorkflow(workflowType))
		group.GET("/:id", s.requireAuthz(object, authorization.ActionView), s.GetAccountsWorkflowByID(workflowType))
		group.GET("/:id/history", s.requireAuthz(object, authorization.ActionView), s.GetAccountsWorkflowHistory(workflowType))
		group.POST("/:id/stage", s.requireAuthz(object, authorization.ActionAdvance), s.AdvanceAccountsWorkflowStage(workflowType))
		group.PUT("/:id/assignee", s.requireAuthz(object, authorization.ActionAssign), s.AssignAccountsWorkflow(workflowType))
	}
}
