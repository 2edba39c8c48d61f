package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/internal/user/domain"
	"github.com/numericalz/practicehub/internal/user/repository"
)

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.User{}))

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
	return svc, fake
}

func TestCreateUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{
		Name:     "  Jane Doe ",
		Email:    " Jane@Example.com ",
		Role:     domain.RoleManager,
		Password: "s3cret-pass",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.CreateUserRequest{
			Name:  "Other Jane",
			Email: "jane@example.com",
			Role:  domain.RoleStaff,
		})
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, domain.CreateUserRequest{
			Name:  "Bob",
			Email: "bob@example.com",
			Role:  "INTERN",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRole)
	})
}

func TestUpdateUser(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Role:  domain.RoleStaff,
	})
	assert.NoError(t, err)

	fake.Advance(time.Hour)
	newRole := domain.RoleManager
	updated, err := svc.Update(ctx, domain.UpdateUserRequest{
		ID:   user.ID.String(),
		Role: &newRole,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.RoleManager, updated.Role)
	assert.True(t, updated.UpdatedAt.After(user.UpdatedAt))

	blank := "  "
	_, err = svc.Update(ctx, domain.UpdateUserRequest{
		ID:   user.ID.String(),
		Name: &blank,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestDeactivateReactivateUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, domain.CreateUserRequest{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Role:  domain.RolePartner,
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.Deactivate(ctx, user.ID.String()))
	got, err := svc.GetByID(ctx, domain.GetUserRequest{ID: user.ID.String()})
	assert.NoError(t, err)
	assert.False(t, got.IsActive)

	// Idempotent.
	assert.NoError(t, svc.Deactivate(ctx, user.ID.String()))

	assert.NoError(t, svc.Reactivate(ctx, user.ID.String()))
	got, err = svc.GetByID(ctx, domain.GetUserRequest{ID: user.ID.String()})
	assert.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestGetUserByEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateUserRequest{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Role:  domain.RoleStaff,
	})
	assert.NoError(t, err)

	got, err := svc.GetByEmail(ctx, " JANE@example.com ")
	assert.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.Email)

	_, err = svc.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
