package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	"github.com/numericalz/practicehub/internal/assignment"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/notification"
	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

// ReminderLog records that a deadline reminder went out for a piece of
// work, keyed by due date so an extended deadline triggers a fresh one.
type ReminderLog struct {
	ID       snowflake.ID  `gorm:"primaryKey" json:"id"`
	WorkType workflow.Type `gorm:"not null;uniqueIndex:idx_reminder_work,priority:1" json:"work_type"`
	WorkID   snowflake.ID  `gorm:"not null;uniqueIndex:idx_reminder_work,priority:2" json:"work_id"`
	DueDate  time.Time     `gorm:"not null;uniqueIndex:idx_reminder_work,priority:3" json:"due_date"`
	SentAt   time.Time     `gorm:"not null" json:"sent_at"`
}

func (ReminderLog) TableName() string { return "deadline_reminder_logs" }

// reminderItem is one open piece of work falling due inside the reminder
// window, normalized across the three workflow tables.
type reminderItem struct {
	workType workflow.Type
	workID   snowflake.ID
	clientID snowflake.ID
	assignee *snowflake.ID
	category assignment.Category
	label    string
	dueDate  time.Time
}

// DeadlineRemindersJob emails the effective assignee of every open piece
// of work due within the reminder lead window, including overdue work.
// Each (work, due date) pair is reminded at most once.
func (s *Scheduler) DeadlineRemindersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "deadline_reminders", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	now := s.clock.Now()
	windowEnd := now.AddDate(0, 0, s.practice.Get().ReminderLeadDays)

	items, err := s.collectDueWork(ctx, windowEnd)
	if err != nil {
		s.logJobError(ctx, run, "collect due work failed", "deadline_reminders", err)
		return err
	}
	if len(items) == 0 {
		return nil
	}

	clients, err := s.loadClientsFor(ctx, items)
	if err != nil {
		s.logJobError(ctx, run, "load clients failed", "deadline_reminders", err)
		return err
	}

	var jobErr error
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		client := clients[item.clientID]
		assigneeID := assignment.Resolve(item.category, client, item.assignee)
		if assigneeID == nil {
			// Unassigned work is not claimed, so it still gets a
			// reminder once someone picks it up.
			s.logger(ctx).Debug("no assignee for due work, reminder skipped",
				zap.String("work_type", string(item.workType)),
				zap.String("work_id", item.workID.String()),
			)
			continue
		}

		user, err := s.userRepo.FindByID(ctx, s.db, *assigneeID)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logJobError(ctx, run, "assignee lookup failed", "deadline_reminders", err,
				zap.String("user_id", assigneeID.String()),
			)
			continue
		}
		if user == nil || !user.IsActive {
			continue
		}

		fresh, err := s.claimReminder(ctx, item, now)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logJobError(ctx, run, "claim reminder failed", "deadline_reminders", err,
				zap.String("work_id", item.workID.String()),
			)
			continue
		}
		if !fresh {
			continue
		}

		clientName := ""
		if client != nil {
			clientName = client.CompanyName
		}
		s.notifier.NotifyDeadlineReminder(ctx, notification.DeadlineReminder{
			RecipientEmail: user.Email,
			RecipientName:  user.Name,
			ClientName:     clientName,
			WorkflowLabel:  item.label,
			DueDate:        item.dueDate,
			DaysLeft:       int(item.dueDate.Sub(now).Hours() / 24),
		})
		s.metrics.RecordReminderSent(ctx, string(item.workType))
		run.AddProcessed(1)
	}

	obsmetrics.Scheduler().RecordBatchProcessed("deadline_reminders", run.processedCount)
	return jobErr
}

func (s *Scheduler) collectDueWork(ctx context.Context, windowEnd time.Time) ([]reminderItem, error) {
	items := make([]reminderItem, 0)

	var quarters []vatdomain.VATQuarter
	if err := s.db.WithContext(ctx).
		Where("is_completed = ? AND filing_due_date <= ?", false, windowEnd).
		Order("filing_due_date asc, id asc").
		Find(&quarters).Error; err != nil {
		return nil, err
	}
	for i := range quarters {
		q := quarters[i]
		items = append(items, reminderItem{
			workType: workflow.TypeVAT,
			workID:   q.ID,
			clientID: q.ClientID,
			assignee: q.AssignedUserID,
			category: assignment.CategoryVAT,
			label:    "VAT Quarter",
			dueDate:  q.FilingDueDate,
		})
	}

	var ltd []accountsdomain.LtdAccountsWorkflow
	if err := s.db.WithContext(ctx).
		Where("is_completed = ? AND accounts_due_date <= ?", false, windowEnd).
		Order("accounts_due_date asc, id asc").
		Find(&ltd).Error; err != nil {
		return nil, err
	}
	for i := range ltd {
		w := ltd[i]
		items = append(items, reminderItem{
			workType: workflow.TypeLtd,
			workID:   w.ID,
			clientID: w.ClientID,
			assignee: w.AssignedUserID,
			category: assignment.CategoryLtdAccounts,
			label:    "Ltd Accounts",
			dueDate:  w.AccountsDueDate,
		})
	}

	var nonLtd []accountsdomain.NonLtdAccountsWorkflow
	if err := s.db.WithContext(ctx).
		Where("is_completed = ? AND accounts_due_date <= ?", false, windowEnd).
		Order("accounts_due_date asc, id asc").
		Find(&nonLtd).Error; err != nil {
		return nil, err
	}
	for i := range nonLtd {
		w := nonLtd[i]
		items = append(items, reminderItem{
			workType: workflow.TypeNonLtd,
			workID:   w.ID,
			clientID: w.ClientID,
			assignee: w.AssignedUserID,
			category: assignment.CategoryNonLtdAccounts,
			label:    "Non-Ltd Accounts",
			dueDate:  w.AccountsDueDate,
		})
	}

	return items, nil
}

func (s *Scheduler) loadClientsFor(ctx context.Context, items []reminderItem) (map[snowflake.ID]*clientdomain.Client, error) {
	idSet := make(map[snowflake.ID]struct{}, len(items))
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if _, ok := idSet[item.clientID]; ok {
			continue
		}
		idSet[item.clientID] = struct{}{}
		ids = append(ids, item.clientID)
	}

	var clients []clientdomain.Client
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&clients).Error; err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]*clientdomain.Client, len(clients))
	for i := range clients {
		byID[clients[i].ID] = &clients[i]
	}
	return byID, nil
}

// claimReminder inserts the dedupe row. False means this (work, due date)
// pair was already reminded.
func (s *Scheduler) claimReminder(ctx context.Context, item reminderItem, now time.Time) (bool, error) {
	var existing ReminderLog
	err := s.db.WithContext(ctx).
		Where("work_type = ? AND work_id = ? AND due_date = ?", item.workType, item.workID, item.dueDate).
		First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	entry := ReminderLog{
		ID:       s.genID.Generate(),
		WorkType: item.workType,
		WorkID:   item.workID,
		DueDate:  item.dueDate,
		SentAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return false, err
	}
	return true, nil
}
