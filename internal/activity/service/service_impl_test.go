package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/internal/activity/repository"
	"github.com/numericalz/practicehub/internal/actorcontext"
	"github.com/numericalz/practicehub/internal/clock"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.ActivityLog{}))

	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, db, fake
}

func TestRecord(t *testing.T) {
	svc, db, fake := newTestService(t)

	actor := actorcontext.Actor{ID: snowflake.ID(42), Name: "Jane Partner", Email: "jane@numericalz.co.uk", Role: "PARTNER"}
	ctx := actorcontext.WithActor(context.Background(), actor)
	ctx = actorcontext.WithRequestID(ctx, "req-123")
	ctx = actorcontext.WithIPAddress(ctx, "10.0.0.9")

	clientID := snowflake.ID(77)
	svc.Record(ctx, domain.RecordRequest{
		Action:   "CLIENT_CREATED",
		ClientID: &clientID,
		Details:  map[string]any{"client_code": "NZ-acme-1"},
	})

	var entries []domain.ActivityLog
	assert.NoError(t, db.Find(&entries).Error)
	if assert.Len(t, entries, 1) {
		entry := entries[0]
		assert.Equal(t, "CLIENT_CREATED", entry.Action)
		if assert.NotNil(t, entry.UserID) {
			assert.Equal(t, actor.ID, *entry.UserID)
		}
		if assert.NotNil(t, entry.ClientID) {
			assert.Equal(t, clientID, *entry.ClientID)
		}
		assert.Equal(t, "NZ-acme-1", entry.Details["client_code"])
		assert.Equal(t, "req-123", entry.Details["request_id"])
		if assert.NotNil(t, entry.IPAddress) {
			assert.Equal(t, "10.0.0.9", *entry.IPAddress)
		}
		assert.Equal(t, fake.Now(), entry.CreatedAt.UTC())
	}
}

func TestRecordNeverFailsCaller(t *testing.T) {
	svc, db, _ := newTestService(t)

	// Removing the table forces the insert to fail; Record must swallow it.
	assert.NoError(t, db.Exec(`DROP TABLE activity_logs`).Error)
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), domain.RecordRequest{Action: "CLIENT_CREATED"})
	})
}

func TestList(t *testing.T) {
	svc, _, fake := newTestService(t)
	ctx := context.Background()

	userA := actorcontext.Actor{ID: snowflake.ID(1), Name: "A"}
	userB := actorcontext.Actor{ID: snowflake.ID(2), Name: "B"}
	clientID := snowflake.ID(501)

	for i := 0; i < 3; i++ {
		svc.Record(actorcontext.WithActor(ctx, userA), domain.RecordRequest{
			Action:   "STAGE_ADVANCED",
			ClientID: &clientID,
		})
		fake.Advance(time.Minute)
	}
	svc.Record(actorcontext.WithActor(ctx, userB), domain.RecordRequest{Action: "CLIENT_CREATED"})

	t.Run("filter by action", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListActivityRequest{Action: "CLIENT_CREATED"})
		assert.NoError(t, err)
		assert.Len(t, resp.ActivityLogs, 1)
	})

	t.Run("filter by user", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListActivityRequest{UserID: userA.ID.String()})
		assert.NoError(t, err)
		assert.Len(t, resp.ActivityLogs, 3)
	})

	t.Run("filter by client", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListActivityRequest{ClientID: clientID.String()})
		assert.NoError(t, err)
		assert.Len(t, resp.ActivityLogs, 3)
	})

	t.Run("cursor pagination walks newest first", func(t *testing.T) {
		first, err := svc.List(ctx, domain.ListActivityRequest{
			Pagination: pagination.Pagination{PageSize: 2},
		})
		assert.NoError(t, err)
		assert.Len(t, first.ActivityLogs, 2)
		assert.True(t, first.HasMore)
		assert.NotEmpty(t, first.NextPageToken)

		second, err := svc.List(ctx, domain.ListActivityRequest{
			Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		})
		assert.NoError(t, err)
		assert.Len(t, second.ActivityLogs, 2)
		assert.False(t, second.HasMore)

		seen := map[snowflake.ID]bool{}
		for _, entry := range append(first.ActivityLogs, second.ActivityLogs...) {
			assert.False(t, seen[entry.ID], "entry repeated across pages")
			seen[entry.ID] = true
		}
	})

	t.Run("invalid page token", func(t *testing.T) {
		_, err := svc.List(ctx, domain.ListActivityRequest{
			Pagination: pagination.Pagination{PageToken: "not-base64!"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
	})

	t.Run("inverted time range", func(t *testing.T) {
		start := fake.Now()
		end := start.Add(-time.Hour)
		_, err := svc.List(ctx, domain.ListActivityRequest{StartAt: &start, EndAt: &end})
		assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
	})
}
