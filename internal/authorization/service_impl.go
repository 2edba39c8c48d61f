package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectClient         = "client"
	ObjectVATQuarter     = "vat_quarter"
	ObjectLtdWorkflow    = "ltd_workflow"
	ObjectNonLtdWorkflow = "non_ltd_workflow"
	ObjectBulk           = "bulk"
	ObjectActivityLog    = "activity_log"
	ObjectUser           = "user"
	ObjectDashboard      = "dashboard"
)

const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionAdvance = "advance"
	ActionAssign  = "assign"
	ActionDelete  = "delete"
	ActionRun     = "run"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, role string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return ErrForbidden
	}

	subject := fmt.Sprintf("user:%s", actor)
	roleName := fmt.Sprintf("role:%s", role)
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps the subject bound to exactly its current role, so a
// role change on the user record takes effect on the next request.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	everyObject := []string{
		ObjectClient, ObjectVATQuarter, ObjectLtdWorkflow, ObjectNonLtdWorkflow,
		ObjectBulk, ObjectActivityLog, ObjectUser, ObjectDashboard,
	}
	workObjects := []string{ObjectVATQuarter, ObjectLtdWorkflow, ObjectNonLtdWorkflow}

	var policies [][]string

	// Partners can do everything.
	for _, object := range everyObject {
		for _, action := range []string{ActionView, ActionCreate, ActionUpdate, ActionAdvance, ActionAssign, ActionDelete, ActionRun} {
			policies = append(policies, []string{"role:partner", object, action})
		}
	}

	// Managers run the practice day to day but cannot remove clients or
	// administer users.
	for _, object := range everyObject {
		policies = append(policies, []string{"role:manager", object, ActionView})
	}
	policies = append(policies,
		[]string{"role:manager", ObjectClient, ActionCreate},
		[]string{"role:manager", ObjectClient, ActionUpdate},
		[]string{"role:manager", ObjectClient, ActionAssign},
		[]string{"role:manager", ObjectBulk, ActionRun},
	)
	for _, object := range workObjects {
		policies = append(policies,
			[]string{"role:manager", object, ActionCreate},
			[]string{"role:manager", object, ActionUpdate},
			[]string{"role:manager", object, ActionAdvance},
			[]string{"role:manager", object, ActionAssign},
		)
	}

	// Staff see the book and progress their own work.
	for _, object := range []string{ObjectClient, ObjectVATQuarter, ObjectLtdWorkflow, ObjectNonLtdWorkflow, ObjectActivityLog, ObjectDashboard} {
		policies = append(policies, []string{"role:staff", object, ActionView})
	}
	for _, object := range workObjects {
		policies = append(policies,
			[]string{"role:staff", object, ActionUpdate},
			[]string{"role:staff", object, ActionAdvance},
		)
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
