package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/accounts/domain"
	"github.com/numericalz/practicehub/internal/accounts/repository"
	"github.com/numericalz/practicehub/internal/actorcontext"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	clientrepository "github.com/numericalz/practicehub/internal/client/repository"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/workflow"
)

type fixture struct {
	svc       domain.Service
	db        *gorm.DB
	fake      *clock.FakeClock
	node      *snowflake.Node
	ltd       clientdomain.Client
	soleTrade clientdomain.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&domain.LtdAccountsWorkflow{},
		&domain.LtdWorkflowHistory{},
		&domain.NonLtdAccountsWorkflow{},
		&domain.NonLtdWorkflowHistory{},
	))

	node, err := snowflake.NewNode(3)
	assert.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC))
	ltdRepo, nonLtdRepo := repository.Provide()
	svc := New(Params{
		DB:         db,
		Log:        zaptest.NewLogger(t),
		GenID:      node,
		Clock:      fake,
		LtdRepo:    ltdRepo,
		NonLtdRepo: nonLtdRepo,
		ClientRepo: clientrepository.Provide(),
	})

	ltdUser := snowflake.ID(400)
	lastAccounts := time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
	ltd := clientdomain.Client{
		ID:                   node.Generate(),
		ClientCode:           "NZ-widget-works-1",
		CompanyName:          "Widget Works Ltd",
		CompanyCategory:      clientdomain.CategoryLimitedCompany,
		ARDDay:               31,
		ARDMonth:             12,
		LastAccountsMadeUpTo: &lastAccounts,
		LtdAssignedUserID:    &ltdUser,
		IsActive:             true,
		CreatedAt:            fake.Now(),
		UpdatedAt:            fake.Now(),
	}
	assert.NoError(t, db.Create(&ltd).Error)

	nonLtdUser := snowflake.ID(500)
	soleLast := time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC)
	soleTrade := clientdomain.Client{
		ID:                   node.Generate(),
		ClientCode:           "NZ-jones-plumbing-1",
		CompanyName:          "Jones Plumbing",
		CompanyCategory:      clientdomain.CategoryNonLimitedCompany,
		ARDDay:               5,
		ARDMonth:             4,
		LastAccountsMadeUpTo: &soleLast,
		NonLtdAssignedUserID: &nonLtdUser,
		IsActive:             true,
		CreatedAt:            fake.Now(),
		UpdatedAt:            fake.Now(),
	}
	assert.NoError(t, db.Create(&soleTrade).Error)

	return &fixture{svc: svc, db: db, fake: fake, node: node, ltd: ltd, soleTrade: soleTrade}
}

func actorCtx(name string) context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{
		ID:    snowflake.ID(42),
		Name:  name,
		Email: "staff@numericalz.co.uk",
		Role:  "STAFF",
	})
}

func TestCreateWorkflowLtd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: f.ltd.ID.String(),
	})
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), wf.FilingPeriodStart)
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), wf.FilingPeriodEnd)
	assert.Equal(t, time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC), wf.AccountsDueDate)
	if assert.NotNil(t, wf.CTDueDate) {
		assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), *wf.CTDueDate)
	}
	assert.Equal(t, workflow.StageWaitingForYearEnd, wf.CurrentStage)
	assert.False(t, wf.IsCompleted)
	if assert.NotNil(t, wf.AssignedUserID) {
		assert.Equal(t, snowflake.ID(400), *wf.AssignedUserID)
	}

	t.Run("duplicate open period rejected", func(t *testing.T) {
		_, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
			Type:     workflow.TypeLtd,
			ClientID: f.ltd.ID.String(),
		})
		assert.ErrorIs(t, err, domain.ErrWorkflowExists)
	})

	t.Run("category mismatch", func(t *testing.T) {
		_, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
			Type:     workflow.TypeLtd,
			ClientID: f.soleTrade.ID.String(),
		})
		assert.ErrorIs(t, err, domain.ErrClientCategoryMismatch)

		_, err = f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
			Type:     workflow.TypeNonLtd,
			ClientID: f.ltd.ID.String(),
		})
		assert.ErrorIs(t, err, domain.ErrClientCategoryMismatch)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
			Type:     workflow.TypeLtd,
			ClientID: "424242424242",
		})
		assert.ErrorIs(t, err, domain.ErrClientNotFound)
	})

	t.Run("unresolvable period", func(t *testing.T) {
		bare := clientdomain.Client{
			ID:              f.node.Generate(),
			ClientCode:      "NZ-bare-1",
			CompanyName:     "Bare Ltd",
			CompanyCategory: clientdomain.CategoryLimitedCompany,
			IsActive:        true,
		}
		assert.NoError(t, f.db.Create(&bare).Error)

		_, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
			Type:     workflow.TypeLtd,
			ClientID: bare.ID.String(),
		})
		assert.ErrorIs(t, err, domain.ErrPeriodUnresolvable)
	})
}

func TestCreateWorkflowFirstYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	incorporated := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	fresh := clientdomain.Client{
		ID:                f.node.Generate(),
		ClientCode:        "NZ-newco-1",
		CompanyName:       "Newco Ltd",
		CompanyCategory:   clientdomain.CategoryLimitedCompany,
		IncorporationDate: &incorporated,
		ARDDay:            31,
		ARDMonth:          12,
		IsActive:          true,
	}
	assert.NoError(t, f.db.Create(&fresh).Error)

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: fresh.ID.String(),
	})
	assert.NoError(t, err)
	// First period runs from incorporation with the 21-month deadline.
	assert.Equal(t, incorporated, wf.FilingPeriodStart)
	assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), wf.FilingPeriodEnd)
	assert.Equal(t, time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC), wf.AccountsDueDate)
}

func TestCreateWorkflowNonLtd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeNonLtd,
		ClientID: f.soleTrade.ID.String(),
	})
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 6, 0, 0, 0, 0, time.UTC), wf.FilingPeriodStart)
	assert.Equal(t, time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC), wf.FilingPeriodEnd)
	assert.Equal(t, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), wf.AccountsDueDate)
	assert.Nil(t, wf.CTDueDate)
	assert.Equal(t, workflow.StageWaitingForYearEnd, wf.CurrentStage)
	if assert.NotNil(t, wf.AssignedUserID) {
		assert.Equal(t, snowflake.ID(500), *wf.AssignedUserID)
	}
}

func TestAdvanceStageLtd(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("Jane Staff")

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: f.ltd.ID.String(),
	})
	assert.NoError(t, err)

	got, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
		Type:        workflow.TypeLtd,
		ID:          wf.ID.String(),
		TargetStage: workflow.StagePaperworkChased,
		Notes:       "chased by phone",
	})
	assert.NoError(t, err)
	assert.Equal(t, workflow.StagePaperworkChased, got.CurrentStage)
	if assert.Len(t, got.Milestones, 1) {
		assert.Equal(t, workflow.StagePaperworkChased, got.Milestones[0].Stage)
		assert.Equal(t, "Jane Staff", got.Milestones[0].ByName)
	}

	history, err := f.svc.History(ctx, domain.HistoryRequest{Type: workflow.TypeLtd, ID: wf.ID.String()})
	assert.NoError(t, err)
	if assert.Len(t, history, 1) {
		assert.Equal(t, workflow.StageWaitingForYearEnd, history[0].FromStage)
		assert.Equal(t, workflow.StagePaperworkChased, history[0].ToStage)
		assert.Equal(t, "Jane Staff", history[0].UserName)
		assert.Equal(t, "staff@numericalz.co.uk", history[0].UserEmail)
		assert.Equal(t, "chased by phone", history[0].Notes)
	}

	t.Run("stage from another workflow type rejected", func(t *testing.T) {
		_, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
			Type:        workflow.TypeLtd,
			ID:          wf.ID.String(),
			TargetStage: workflow.StageQueriesPending,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidStage)

		history, err := f.svc.History(ctx, domain.HistoryRequest{Type: workflow.TypeLtd, ID: wf.ID.String()})
		assert.NoError(t, err)
		assert.Len(t, history, 1)
	})

	t.Run("regression keeps earlier milestone", func(t *testing.T) {
		firstChase := got.Milestones[0].Date

		f.fake.Advance(24 * time.Hour)
		_, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
			Type:        workflow.TypeLtd,
			ID:          wf.ID.String(),
			TargetStage: workflow.StagePaperworkPendingChase,
		})
		assert.NoError(t, err)

		f.fake.Advance(24 * time.Hour)
		again, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
			Type:        workflow.TypeLtd,
			ID:          wf.ID.String(),
			TargetStage: workflow.StagePaperworkChased,
		})
		assert.NoError(t, err)
		if assert.Len(t, again.Milestones, 1) {
			assert.Equal(t, firstChase, again.Milestones[0].Date.UTC())
		}
	})

	t.Run("terminal stage completes and stamps filed date", func(t *testing.T) {
		done, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
			Type:        workflow.TypeLtd,
			ID:          wf.ID.String(),
			TargetStage: workflow.StageFiledToCompaniesHouse,
		})
		assert.NoError(t, err)
		assert.True(t, done.IsCompleted)
		assert.NotNil(t, done.FiledDate)
		assert.Equal(t, 100, done.ProgressPercent)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
			Type:        workflow.TypeLtd,
			ID:          "424242424242",
			TargetStage: workflow.StagePaperworkChased,
		})
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})
}

func TestAdvanceStageNonLtdTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("Pat Partner")

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeNonLtd,
		ClientID: f.soleTrade.ID.String(),
	})
	assert.NoError(t, err)

	done, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
		Type:        workflow.TypeNonLtd,
		ID:          wf.ID.String(),
		TargetStage: workflow.StageFiledToHMRC,
	})
	assert.NoError(t, err)
	assert.True(t, done.IsCompleted)
	assert.NotNil(t, done.FiledDate)
	if assert.Len(t, done.Milestones, 1) {
		assert.Equal(t, workflow.StageFiledToHMRC, done.Milestones[0].Stage)
	}
}

func TestAdvanceStageRollsBackOnHistoryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("Jane Staff")

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: f.ltd.ID.String(),
	})
	assert.NoError(t, err)

	assert.NoError(t, f.db.Exec("DROP TABLE ltd_workflow_histories").Error)

	_, err = f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
		Type:        workflow.TypeLtd,
		ID:          wf.ID.String(),
		TargetStage: workflow.StagePaperworkChased,
	})
	assert.Error(t, err)

	unchanged, err := f.svc.GetByID(ctx, domain.GetWorkflowRequest{Type: workflow.TypeLtd, ID: wf.ID.String()})
	assert.NoError(t, err)
	assert.Equal(t, workflow.StageWaitingForYearEnd, unchanged.CurrentStage)
	assert.Empty(t, unchanged.Milestones)
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wf, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: f.ltd.ID.String(),
	})
	assert.NoError(t, err)

	got, err := f.svc.Assign(ctx, domain.AssignRequest{
		Type:   workflow.TypeLtd,
		ID:     wf.ID.String(),
		UserID: snowflake.ID(900),
	})
	assert.NoError(t, err)
	if assert.NotNil(t, got.AssignedUserID) {
		assert.Equal(t, snowflake.ID(900), *got.AssignedUserID)
	}

	cleared, err := f.svc.Assign(ctx, domain.AssignRequest{
		Type: workflow.TypeLtd,
		ID:   wf.ID.String(),
	})
	assert.NoError(t, err)
	assert.Nil(t, cleared.AssignedUserID)
}

func TestListWorkflows(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx("Jane Staff")

	first, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: f.ltd.ID.String(),
	})
	assert.NoError(t, err)

	// A second limited client with an earlier year end sorts first.
	early := time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC)
	other := clientdomain.Client{
		ID:                   f.node.Generate(),
		ClientCode:           "NZ-early-bird-1",
		CompanyName:          "Early Bird Ltd",
		CompanyCategory:      clientdomain.CategoryLimitedCompany,
		ARDDay:               30,
		ARDMonth:             6,
		LastAccountsMadeUpTo: &early,
		IsActive:             true,
	}
	assert.NoError(t, f.db.Create(&other).Error)

	second, err := f.svc.CreateWorkflow(ctx, domain.CreateWorkflowRequest{
		Type:     workflow.TypeLtd,
		ClientID: other.ID.String(),
	})
	assert.NoError(t, err)

	views, pageInfo, err := f.svc.List(ctx, domain.ListWorkflowRequest{Type: workflow.TypeLtd})
	assert.NoError(t, err)
	if assert.Len(t, views, 2) {
		assert.Equal(t, second.ID, views[0].ID)
		assert.Equal(t, first.ID, views[1].ID)
	}
	if assert.NotNil(t, pageInfo) {
		assert.False(t, pageInfo.HasMore)
	}

	t.Run("uncompleted only", func(t *testing.T) {
		_, err := f.svc.AdvanceStage(ctx, domain.AdvanceStageRequest{
			Type:        workflow.TypeLtd,
			ID:          second.ID.String(),
			TargetStage: workflow.StageFiledToCompaniesHouse,
		})
		assert.NoError(t, err)

		views, _, err := f.svc.List(ctx, domain.ListWorkflowRequest{
			Type:            workflow.TypeLtd,
			UncompletedOnly: true,
		})
		assert.NoError(t, err)
		if assert.Len(t, views, 1) {
			assert.Equal(t, first.ID, views[0].ID)
		}
	})

	t.Run("due before", func(t *testing.T) {
		cutoff := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
		views, _, err := f.svc.List(ctx, domain.ListWorkflowRequest{
			Type:      workflow.TypeLtd,
			DueBefore: &cutoff,
		})
		assert.NoError(t, err)
		if assert.Len(t, views, 1) {
			assert.Equal(t, second.ID, views[0].ID)
		}
	})

	t.Run("invalid type", func(t *testing.T) {
		_, _, err := f.svc.List(ctx, domain.ListWorkflowRequest{Type: workflow.Type("PAYROLL")})
		assert.ErrorIs(t, err, domain.ErrInvalidType)
	})
}
