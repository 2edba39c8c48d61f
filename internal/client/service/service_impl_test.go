package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/client/repository"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/deadline"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&domain.Client{})
	assert.NoError(t, err)

	// Cascade targets for HardDelete.
	for _, stmt := range []string{
		`CREATE TABLE vat_quarters (id INTEGER PRIMARY KEY, client_id INTEGER)`,
		`CREATE TABLE vat_quarter_histories (id INTEGER PRIMARY KEY, vat_quarter_id INTEGER)`,
		`CREATE TABLE ltd_accounts_workflows (id INTEGER PRIMARY KEY, client_id INTEGER)`,
		`CREATE TABLE ltd_workflow_histories (id INTEGER PRIMARY KEY, workflow_id INTEGER)`,
		`CREATE TABLE non_ltd_accounts_workflows (id INTEGER PRIMARY KEY, client_id INTEGER)`,
		`CREATE TABLE non_ltd_workflow_histories (id INTEGER PRIMARY KEY, workflow_id INTEGER)`,
		`CREATE TABLE activity_logs (id INTEGER PRIMARY KEY, client_id INTEGER)`,
	} {
		assert.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db, fake
}

func TestCreateClient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	inc := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)
	client, err := svc.Create(ctx, domain.CreateClientRequest{
		CompanyName:       "Acme Widgets Ltd",
		CompanyNumber:     "12345678",
		CompanyCategory:   domain.CategoryLimitedCompany,
		IncorporationDate: &inc,
		ARDDay:            31, ARDMonth: 12,
	})
	assert.NoError(t, err)
	assert.Equal(t, "NZ-acme-widgets-ltd-1", client.ClientCode)
	assert.True(t, client.IsActive)

	// First-time filer: accounts due 21 months after incorporation.
	if assert.NotNil(t, client.NextAccountsDue) {
		assert.Equal(t, time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC), *client.NextAccountsDue)
	}
	if assert.NotNil(t, client.NextConfirmationDue) {
		assert.Equal(t, time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC), *client.NextConfirmationDue)
	}

	t.Run("codes increment per company name", func(t *testing.T) {
		second, err := svc.Create(ctx, domain.CreateClientRequest{
			CompanyName:     "Acme Widgets Ltd",
			CompanyCategory: domain.CategoryLimitedCompany,
		})
		assert.NoError(t, err)
		assert.Equal(t, "NZ-acme-widgets-ltd-2", second.ClientCode)
	})

	t.Run("duplicate company number rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.CreateClientRequest{
			CompanyName:     "Other Co",
			CompanyNumber:   "12345678",
			CompanyCategory: domain.CategoryLimitedCompany,
		})
		assert.ErrorIs(t, err, domain.ErrCompanyNumberTaken)
	})

	t.Run("vat enabled requires quarter group", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.CreateClientRequest{
			CompanyName:     "VAT Co",
			CompanyCategory: domain.CategoryLimitedCompany,
			VATEnabled:      true,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidQuarterGroup)
	})

	t.Run("invalid category rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.CreateClientRequest{
			CompanyName:     "Bad Co",
			CompanyCategory: domain.Category("PLC"),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	})
}

func TestClientLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	client, err := svc.Create(ctx, domain.CreateClientRequest{
		CompanyName:     "Lifecycle Ltd",
		CompanyCategory: domain.CategoryLimitedCompany,
	})
	assert.NoError(t, err)
	id := client.ID.String()

	assert.NoError(t, svc.SoftDelete(ctx, id))
	got, err := svc.GetByID(ctx, domain.GetClientRequest{ID: id})
	assert.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.NoError(t, svc.Reactivate(ctx, id))
	got, err = svc.GetByID(ctx, domain.GetClientRequest{ID: id})
	assert.NoError(t, err)
	assert.True(t, got.IsActive)

	byCode, err := svc.GetByCode(ctx, client.ClientCode)
	assert.NoError(t, err)
	assert.Equal(t, client.ID, byCode.ID)

	_, err = svc.GetByID(ctx, domain.GetClientRequest{ID: "999999999"})
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestUpdateAssignments(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	client, err := svc.Create(ctx, domain.CreateClientRequest{
		CompanyName:     "Assigned Ltd",
		CompanyCategory: domain.CategoryLimitedCompany,
	})
	assert.NoError(t, err)

	general := snowflake.ID(1001)
	vat := snowflake.ID(1002)
	got, err := svc.UpdateAssignments(ctx, domain.UpdateAssignmentsRequest{
		ID:      client.ID.String(),
		General: &general,
		VAT:     &vat,
	})
	assert.NoError(t, err)
	assert.Equal(t, &general, got.AssignedUserID)
	assert.Equal(t, &vat, got.VATAssignedUserID)
	assert.Nil(t, got.LtdAssignedUserID)

	// Zero clears a slot, nil leaves it untouched.
	clear := snowflake.ID(0)
	got, err = svc.UpdateAssignments(ctx, domain.UpdateAssignmentsRequest{
		ID:  client.ID.String(),
		VAT: &clear,
	})
	assert.NoError(t, err)
	assert.Nil(t, got.VATAssignedUserID)
	assert.Equal(t, &general, got.AssignedUserID)
}

func TestApplyRegistryProfile(t *testing.T) {
	svc, _, fake := newTestService(t)
	ctx := context.Background()

	client, err := svc.Create(ctx, domain.CreateClientRequest{
		CompanyName:     "Registry Ltd",
		CompanyNumber:   "87654321",
		CompanyCategory: domain.CategoryLimitedCompany,
	})
	assert.NoError(t, err)
	assert.Nil(t, client.NextAccountsDue)

	inc := time.Date(2020, time.January, 10, 0, 0, 0, 0, time.UTC)
	lastAccounts := time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
	got, err := svc.ApplyRegistryProfile(ctx, client.ID.String(), domain.RegistryProfile{
		CompanyName:          "Registry Trading Ltd",
		CompanyStatus:        "active",
		IncorporationDate:    &inc,
		ARDDay:               31, ARDMonth: 12,
		LastAccountsMadeUpTo: &lastAccounts,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Registry Trading Ltd", got.CompanyName)
	assert.Equal(t, "active", got.CompanyStatus)

	// Established filer: year end 2024-12-31, due nine months later.
	if assert.NotNil(t, got.NextAccountsDue) {
		assert.Equal(t, time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC), *got.NextAccountsDue)
	}
	if assert.NotNil(t, got.RegistryRefreshedAt) {
		assert.Equal(t, fake.Now(), *got.RegistryRefreshedAt)
	}
}

func TestHardDeleteCascades(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	client, err := svc.Create(ctx, domain.CreateClientRequest{
		CompanyName:     "Doomed Ltd",
		CompanyCategory: domain.CategoryLimitedCompany,
	})
	assert.NoError(t, err)

	assert.NoError(t, db.Exec(`INSERT INTO vat_quarters (id, client_id) VALUES (1, ?)`, client.ID).Error)
	assert.NoError(t, db.Exec(`INSERT INTO vat_quarter_histories (id, vat_quarter_id) VALUES (1, 1)`).Error)
	assert.NoError(t, db.Exec(`INSERT INTO ltd_accounts_workflows (id, client_id) VALUES (1, ?)`, client.ID).Error)
	assert.NoError(t, db.Exec(`INSERT INTO ltd_workflow_histories (id, workflow_id) VALUES (1, 1)`).Error)
	assert.NoError(t, db.Exec(`INSERT INTO activity_logs (id, client_id) VALUES (1, ?)`, client.ID).Error)

	assert.NoError(t, svc.HardDelete(ctx, client.ID.String()))

	var count int64
	assert.NoError(t, db.Table("clients").Count(&count).Error)
	assert.Zero(t, count)
	assert.NoError(t, db.Table("vat_quarters").Count(&count).Error)
	assert.Zero(t, count)
	assert.NoError(t, db.Table("vat_quarter_histories").Count(&count).Error)
	assert.Zero(t, count)
	assert.NoError(t, db.Table("ltd_workflow_histories").Count(&count).Error)
	assert.Zero(t, count)

	// Activity rows survive with the reference cleared.
	assert.NoError(t, db.Table("activity_logs").Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.NoError(t, db.Table("activity_logs").Where("client_id IS NULL").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListClients(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Alpha Ltd", "Beta Ltd", "Gamma Partners"} {
		category := domain.CategoryLimitedCompany
		if name == "Gamma Partners" {
			category = domain.CategoryNonLimitedCompany
		}
		_, err := svc.Create(ctx, domain.CreateClientRequest{
			CompanyName:     name,
			CompanyCategory: category,
		})
		assert.NoError(t, err)
	}

	vatClient, err := svc.Create(ctx, domain.CreateClientRequest{
		CompanyName:     "VAT Traders Ltd",
		CompanyCategory: domain.CategoryLimitedCompany,
		VATEnabled:      true,
		VATQuarterGroup: deadline.QuarterGroup2,
	})
	assert.NoError(t, err)

	all, err := svc.List(ctx, domain.ListClientRequest{})
	assert.NoError(t, err)
	assert.Len(t, all.Clients, 4)

	ltd, err := svc.List(ctx, domain.ListClientRequest{Category: domain.CategoryLimitedCompany})
	assert.NoError(t, err)
	assert.Len(t, ltd.Clients, 3)

	vat, err := svc.List(ctx, domain.ListClientRequest{VATEnabledOnly: true})
	assert.NoError(t, err)
	if assert.Len(t, vat.Clients, 1) {
		assert.Equal(t, vatClient.ID, vat.Clients[0].ID)
	}

	search, err := svc.List(ctx, domain.ListClientRequest{Search: "Gamma"})
	assert.NoError(t, err)
	assert.Len(t, search.Clients, 1)
}
