// Package dashboard serves the read-only workload and deadline views. All
// per-user counts go through the assignment resolver so the dashboard and
// the workflow lists can never disagree about who owns a piece of work.
package dashboard

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	"github.com/numericalz/practicehub/internal/assignment"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/clock"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
)

var ErrInvalidID = errors.New("invalid_user_id")

// Workload is one user's share of the open work. A nil UserID row is the
// unassigned bucket.
type Workload struct {
	UserID   *snowflake.ID `json:"user_id,omitempty"`
	UserName string        `json:"user_name,omitempty"`

	VATQuarters    int `json:"vat_quarters"`
	LtdAccounts    int `json:"ltd_accounts"`
	NonLtdAccounts int `json:"non_ltd_accounts"`
	OverdueTotal   int `json:"overdue_total"`
	DueSoonTotal   int `json:"due_soon_total"`
	Total          int `json:"total"`
}

// TypeSummary counts one workflow family's open items by proximity to the
// filing deadline.
type TypeSummary struct {
	Open    int `json:"open"`
	DueSoon int `json:"due_soon"`
	Overdue int `json:"overdue"`
}

type DeadlineSummary struct {
	WithinDays     int         `json:"within_days"`
	VAT            TypeSummary `json:"vat"`
	LtdAccounts    TypeSummary `json:"ltd_accounts"`
	NonLtdAccounts TypeSummary `json:"non_ltd_accounts"`
}

type Service interface {
	UserWorkload(ctx context.Context, userID string) (Workload, error)
	TeamView(ctx context.Context) ([]Workload, error)
	DeadlineSummary(ctx context.Context, withinDays int) (DeadlineSummary, error)
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("dashboard.service"),
		clock: p.Clock,
	}
}

var Module = fx.Module("dashboard.service",
	fx.Provide(New),
)

// openItem is one open workflow flattened to what the views need.
type openItem struct {
	category assignment.Category
	assignee *snowflake.ID
	clientID snowflake.ID
	dueDate  time.Time
}

func (s *service) UserWorkload(ctx context.Context, rawUserID string) (Workload, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(rawUserID))
	if err != nil || userID == 0 {
		return Workload{}, ErrInvalidID
	}

	items, err := s.collectOpenItems(ctx)
	if err != nil {
		return Workload{}, err
	}

	now := s.clock.Now()
	workload := Workload{UserID: &userID}
	for _, item := range items {
		if item.assignee == nil || *item.assignee != userID {
			continue
		}
		accumulate(&workload, item, now, defaultDueSoonDays)
	}

	var user userdomain.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err == nil {
		workload.UserName = user.Name
	}
	return workload, nil
}

func (s *service) TeamView(ctx context.Context) ([]Workload, error) {
	items, err := s.collectOpenItems(ctx)
	if err != nil {
		return nil, err
	}

	var users []userdomain.User
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("name asc").Find(&users).Error; err != nil {
		return nil, err
	}

	now := s.clock.Now()
	byUser := make(map[snowflake.ID]*Workload, len(users))
	ordered := make([]*Workload, 0, len(users)+1)
	for _, user := range users {
		id := user.ID
		w := &Workload{UserID: &id, UserName: user.Name}
		byUser[id] = w
		ordered = append(ordered, w)
	}
	unassigned := &Workload{}

	for _, item := range items {
		target := unassigned
		if item.assignee != nil {
			if w, ok := byUser[*item.assignee]; ok {
				target = w
			}
		}
		accumulate(target, item, now, defaultDueSoonDays)
	}

	// Heaviest workload first, unassigned bucket last when non-empty.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Total > ordered[j].Total
	})
	if unassigned.Total > 0 {
		ordered = append(ordered, unassigned)
	}

	out := make([]Workload, 0, len(ordered))
	for _, w := range ordered {
		out = append(out, *w)
	}
	return out, nil
}

func (s *service) DeadlineSummary(ctx context.Context, withinDays int) (DeadlineSummary, error) {
	if withinDays <= 0 {
		withinDays = defaultDueSoonDays
	}

	items, err := s.collectOpenItems(ctx)
	if err != nil {
		return DeadlineSummary{}, err
	}

	now := s.clock.Now()
	horizon := now.AddDate(0, 0, withinDays)
	summary := DeadlineSummary{WithinDays: withinDays}
	for _, item := range items {
		var bucket *TypeSummary
		switch item.category {
		case assignment.CategoryVAT:
			bucket = &summary.VAT
		case assignment.CategoryLtdAccounts:
			bucket = &summary.LtdAccounts
		case assignment.CategoryNonLtdAccounts:
			bucket = &summary.NonLtdAccounts
		default:
			continue
		}
		bucket.Open++
		if item.dueDate.Before(now) {
			bucket.Overdue++
		} else if !item.dueDate.After(horizon) {
			bucket.DueSoon++
		}
	}
	return summary, nil
}

const defaultDueSoonDays = 30

// collectOpenItems loads every open workflow and resolves its effective
// assignee through the three-tier fallback.
func (s *service) collectOpenItems(ctx context.Context) ([]openItem, error) {
	var quarters []vatdomain.VATQuarter
	if err := s.db.WithContext(ctx).Where("is_completed = ?", false).Find(&quarters).Error; err != nil {
		return nil, err
	}
	var ltd []accountsdomain.LtdAccountsWorkflow
	if err := s.db.WithContext(ctx).Where("is_completed = ?", false).Find(&ltd).Error; err != nil {
		return nil, err
	}
	var nonLtd []accountsdomain.NonLtdAccountsWorkflow
	if err := s.db.WithContext(ctx).Where("is_completed = ?", false).Find(&nonLtd).Error; err != nil {
		return nil, err
	}

	clientIDs := make(map[snowflake.ID]struct{})
	for _, q := range quarters {
		clientIDs[q.ClientID] = struct{}{}
	}
	for _, w := range ltd {
		clientIDs[w.ClientID] = struct{}{}
	}
	for _, w := range nonLtd {
		clientIDs[w.ClientID] = struct{}{}
	}

	clients := make(map[snowflake.ID]*clientdomain.Client, len(clientIDs))
	if len(clientIDs) > 0 {
		ids := make([]snowflake.ID, 0, len(clientIDs))
		for id := range clientIDs {
			ids = append(ids, id)
		}
		var rows []clientdomain.Client
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			clients[rows[i].ID] = &rows[i]
		}
	}

	items := make([]openItem, 0, len(quarters)+len(ltd)+len(nonLtd))
	for _, q := range quarters {
		items = append(items, openItem{
			category: assignment.CategoryVAT,
			assignee: assignment.Resolve(assignment.CategoryVAT, clients[q.ClientID], q.AssignedUserID),
			clientID: q.ClientID,
			dueDate:  q.FilingDueDate,
		})
	}
	for _, w := range ltd {
		items = append(items, openItem{
			category: assignment.CategoryLtdAccounts,
			assignee: assignment.Resolve(assignment.CategoryLtdAccounts, clients[w.ClientID], w.AssignedUserID),
			clientID: w.ClientID,
			dueDate:  w.AccountsDueDate,
		})
	}
	for _, w := range nonLtd {
		items = append(items, openItem{
			category: assignment.CategoryNonLtdAccounts,
			assignee: assignment.Resolve(assignment.CategoryNonLtdAccounts, clients[w.ClientID], w.AssignedUserID),
			clientID: w.ClientID,
			dueDate:  w.AccountsDueDate,
		})
	}
	return items, nil
}

func accumulate(w *Workload, item openItem, now time.Time, dueSoonDays int) {
	switch item.category {
	case assignment.CategoryVAT:
		w.VATQuarters++
	case assignment.CategoryLtdAccounts:
		w.LtdAccounts++
	case assignment.CategoryNonLtdAccounts:
		w.NonLtdAccounts++
	}
	w.Total++
	if item.dueDate.Before(now) {
		w.OverdueTotal++
	} else if !item.dueDate.After(now.AddDate(0, 0, dueSoonDays)) {
		w.DueSoonTotal++
	}
}
