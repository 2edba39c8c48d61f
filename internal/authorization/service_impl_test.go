package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	enforcer, err := NewEnforcer(db)
	assert.NoError(t, err)

	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func TestAuthorize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		role   string
		object string
		action string
		allow  bool
	}{
		{"partner deletes clients", "PARTNER", ObjectClient, ActionDelete, true},
		{"partner manages users", "PARTNER", ObjectUser, ActionCreate, true},
		{"partner runs bulk ops", "PARTNER", ObjectBulk, ActionRun, true},

		{"manager views everything", "MANAGER", ObjectUser, ActionView, true},
		{"manager runs bulk ops", "MANAGER", ObjectBulk, ActionRun, true},
		{"manager advances workflows", "MANAGER", ObjectVATQuarter, ActionAdvance, true},
		{"manager cannot delete clients", "MANAGER", ObjectClient, ActionDelete, false},
		{"manager cannot manage users", "MANAGER", ObjectUser, ActionCreate, false},

		{"staff views clients", "STAFF", ObjectClient, ActionView, true},
		{"staff advances own work", "STAFF", ObjectLtdWorkflow, ActionAdvance, true},
		{"staff cannot create clients", "STAFF", ObjectClient, ActionCreate, false},
		{"staff cannot run bulk ops", "STAFF", ObjectBulk, ActionRun, false},
		{"staff cannot assign", "STAFF", ObjectVATQuarter, ActionAssign, false},

		{"unknown role denied", "INTERN", ObjectClient, ActionView, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, "1001", tc.role, tc.object, tc.action)
			if tc.allow {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", "PARTNER", ObjectClient, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "1001", "PARTNER", "", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "1001", "PARTNER", ObjectClient, ""), ErrInvalidAction)
	assert.ErrorIs(t, svc.Authorize(ctx, "1001", "", ObjectClient, ActionView), ErrForbidden)
}

func TestRoleChangeTakesEffect(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "2002", "STAFF", ObjectClient, ActionCreate), ErrForbidden)

	// Promotion rebinds the subject to its new role.
	assert.NoError(t, svc.Authorize(ctx, "2002", "MANAGER", ObjectClient, ActionCreate))

	// And a demotion revokes what the old role allowed.
	assert.ErrorIs(t, svc.Authorize(ctx, "2002", "STAFF", ObjectClient, ActionCreate), ErrForbidden)
}
