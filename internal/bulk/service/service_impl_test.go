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

	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	accountsrepository "github.com/numericalz/practicehub/internal/accounts/repository"
	accountsservice "github.com/numericalz/practicehub/internal/accounts/service"
	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	activityrepository "github.com/numericalz/practicehub/internal/activity/repository"
	activityservice "github.com/numericalz/practicehub/internal/activity/service"
	"github.com/numericalz/practicehub/internal/actorcontext"
	"github.com/numericalz/practicehub/internal/assignment"
	"github.com/numericalz/practicehub/internal/bulk/domain"
	"github.com/numericalz/practicehub/internal/bulk/repository"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	clientrepository "github.com/numericalz/practicehub/internal/client/repository"
	clientservice "github.com/numericalz/practicehub/internal/client/service"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/companieshouse"
	"github.com/numericalz/practicehub/internal/config"
	"github.com/numericalz/practicehub/internal/deadline"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	vatrepository "github.com/numericalz/practicehub/internal/vatquarter/repository"
	vatservice "github.com/numericalz/practicehub/internal/vatquarter/service"
	"github.com/numericalz/practicehub/internal/workflow"
)

type stubSyncer struct {
	refreshed []string
	err       error
}

func (s *stubSyncer) RefreshClient(_ context.Context, clientID string) (clientdomain.Client, error) {
	s.refreshed = append(s.refreshed, clientID)
	return clientdomain.Client{}, s.err
}

func (s *stubSyncer) RefreshAll(context.Context) (companieshouse.SweepResult, error) {
	return companieshouse.SweepResult{}, nil
}

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	fake   *clock.FakeClock
	node   *snowflake.Node
	syncer *stubSyncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&clientdomain.Client{},
		&vatdomain.VATQuarter{},
		&vatdomain.VATQuarterHistory{},
		&accountsdomain.LtdAccountsWorkflow{},
		&accountsdomain.LtdWorkflowHistory{},
		&accountsdomain.NonLtdAccountsWorkflow{},
		&accountsdomain.NonLtdWorkflowHistory{},
		&activitydomain.ActivityLog{},
		&domain.BulkJob{},
	))

	node, err := snowflake.NewNode(5)
	assert.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	clientRepo := clientrepository.Provide()
	clientSvc := clientservice.New(clientservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: clientRepo,
	})
	vatSvc := vatservice.New(vatservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		Repo: vatrepository.Provide(), ClientRepo: clientRepo,
	})
	ltdRepo, nonLtdRepo := accountsrepository.Provide()
	accountsSvc := accountsservice.New(accountsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
		LtdRepo: ltdRepo, NonLtdRepo: nonLtdRepo, ClientRepo: clientRepo,
	})
	activitySvc := activityservice.New(activityservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: activityrepository.Provide(),
	})

	syncer := &stubSyncer{}
	svc := New(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Config:   config.Config{},
		Practice: config.NewStaticPracticeConfigHolder(config.PracticeConfig{
			MaxBulkBatchSize:      3,
			ReminderLeadDays:      14,
			QuarterCreateLeadDays: 7,
			BulkJobTTLHours:       72,
		}),
		Repo:        repository.Provide(),
		ClientSvc:   clientSvc,
		VATSvc:      vatSvc,
		AccountsSvc: accountsSvc,
		ActivitySvc: activitySvc,
		Syncer:      syncer,
	})

	return &fixture{svc: svc, db: db, fake: fake, node: node, syncer: syncer}
}

func (f *fixture) addVATClient(t *testing.T, code string) clientdomain.Client {
	t.Helper()
	record := clientdomain.Client{
		ID:              f.node.Generate(),
		ClientCode:      code,
		CompanyName:     "Bulk Fixture Ltd",
		CompanyCategory: clientdomain.CategoryLimitedCompany,
		VATEnabled:      true,
		VATQuarterGroup: deadline.QuarterGroup1,
		IsActive:        true,
		CreatedAt:       f.fake.Now(),
		UpdatedAt:       f.fake.Now(),
	}
	assert.NoError(t, f.db.Create(&record).Error)
	return record
}

func actorCtx() context.Context {
	return actorcontext.WithActor(context.Background(), actorcontext.Actor{
		ID:   snowflake.ID(42),
		Name: "Pat Partner",
		Role: "PARTNER",
	})
}

func TestBatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	_, err := f.svc.CreateVATQuarters(ctx, domain.CreateVATQuartersRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)

	_, err = f.svc.CreateVATQuarters(ctx, domain.CreateVATQuartersRequest{
		ClientIDs: []string{"1", "2", "3", "4"},
	})
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)

	// Blank and duplicate entries collapse before the size check.
	_, err = f.svc.CreateVATQuarters(ctx, domain.CreateVATQuartersRequest{
		ClientIDs: []string{"", "  ", ""},
	})
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)

	// A rejected batch leaves no job row behind.
	var count int64
	assert.NoError(t, f.db.Model(&domain.BulkJob{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateVATQuartersIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	one := f.addVATClient(t, "NZ-bulk-one-1")
	two := f.addVATClient(t, "NZ-bulk-two-1")

	result, err := f.svc.CreateVATQuarters(ctx, domain.CreateVATQuartersRequest{
		ClientIDs: []string{one.ID.String(), "424242424242", two.ID.String()},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, result.Status)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	if assert.Len(t, result.Items, 3) {
		assert.True(t, result.Items[0].OK)
		assert.False(t, result.Items[1].OK)
		assert.Contains(t, result.Items[1].Error, "client_not_found")
		assert.True(t, result.Items[2].OK)
	}

	var quarters int64
	assert.NoError(t, f.db.Model(&vatdomain.VATQuarter{}).Count(&quarters).Error)
	assert.EqualValues(t, 2, quarters)

	// One aggregate audit entry, not one per item.
	var logs []activitydomain.ActivityLog
	assert.NoError(t, f.db.Find(&logs).Error)
	if assert.Len(t, logs, 1) {
		assert.Equal(t, "bulk.create_vat_quarters", logs[0].Action)
	}
}

func TestUpdateVATStageAllFailing(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	result, err := f.svc.UpdateVATStage(ctx, domain.UpdateStageRequest{
		IDs:         []string{"424242424242"},
		TargetStage: workflow.StagePaperworkChased,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.Equal(t, 1, result.Failed)
}

func TestAssignClients(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	record := f.addVATClient(t, "NZ-assign-me-1")

	result, err := f.svc.AssignClients(ctx, domain.AssignClientsRequest{
		ClientIDs: []string{record.ID.String()},
		Category:  assignment.CategoryVAT,
		UserID:    snowflake.ID(700),
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	var reloaded clientdomain.Client
	assert.NoError(t, f.db.First(&reloaded, "id = ?", record.ID).Error)
	if assert.NotNil(t, reloaded.VATAssignedUserID) {
		assert.Equal(t, snowflake.ID(700), *reloaded.VATAssignedUserID)
	}

	t.Run("unknown category touches nothing", func(t *testing.T) {
		_, err := f.svc.AssignClients(ctx, domain.AssignClientsRequest{
			ClientIDs: []string{record.ID.String()},
			Category:  assignment.Category("payroll"),
			UserID:    snowflake.ID(701),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	})
}

func TestDeleteClientsCascades(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	record := f.addVATClient(t, "NZ-doomed-1")
	_, err := f.svc.CreateVATQuarters(ctx, domain.CreateVATQuartersRequest{
		ClientIDs: []string{record.ID.String()},
	})
	assert.NoError(t, err)

	result, err := f.svc.DeleteClients(ctx, domain.DeleteClientsRequest{
		ClientIDs: []string{record.ID.String()},
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	var clients, quarters int64
	assert.NoError(t, f.db.Model(&clientdomain.Client{}).Count(&clients).Error)
	assert.NoError(t, f.db.Model(&vatdomain.VATQuarter{}).Count(&quarters).Error)
	assert.Zero(t, clients)
	assert.Zero(t, quarters)
}

func TestRefreshCompaniesHouseRunsInBackground(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	record := f.addVATClient(t, "NZ-refresh-1")

	result, err := f.svc.RefreshCompaniesHouse(ctx, domain.RefreshCompaniesHouseRequest{
		ClientIDs: []string{record.ID.String()},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, result.Status)

	assert.Eventually(t, func() bool {
		job, err := f.svc.GetJob(context.Background(), result.JobID.String())
		return err == nil && job.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	job, err := f.svc.GetJob(context.Background(), result.JobID.String())
	assert.NoError(t, err)
	assert.Equal(t, 1, job.Succeeded)
	assert.Equal(t, []string{record.ID.String()}, f.syncer.refreshed)
}

func TestGetJobAndCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := actorCtx()

	record := f.addVATClient(t, "NZ-cleanup-1")
	result, err := f.svc.CreateVATQuarters(ctx, domain.CreateVATQuartersRequest{
		ClientIDs: []string{record.ID.String()},
	})
	assert.NoError(t, err)

	job, err := f.svc.GetJob(ctx, result.JobID.String())
	assert.NoError(t, err)
	assert.Equal(t, domain.KindCreateVATQuarters, job.Kind)
	assert.Len(t, job.Items, 1)

	_, err = f.svc.GetJob(ctx, "424242424242")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = f.svc.GetJob(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	t.Run("expired rows are reaped", func(t *testing.T) {
		reaped, err := f.svc.CleanupExpired(ctx)
		assert.NoError(t, err)
		assert.Zero(t, reaped)

		f.fake.Advance(73 * time.Hour)
		reaped, err = f.svc.CleanupExpired(ctx)
		assert.NoError(t, err)
		assert.EqualValues(t, 1, reaped)

		_, err = f.svc.GetJob(ctx, result.JobID.String())
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}
