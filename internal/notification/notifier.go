// Package notification renders and sends workflow emails. Sends are
// fire-and-forget: failures are logged and never surface to the caller,
// so a broken SMTP relay cannot block a stage change.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/numericalz/practicehub/internal/providers/email"
)

//go:embed templates/*.html
var templateFS embed.FS

// StageChange is the payload for a workflow stage-change email.
type StageChange struct {
	RecipientEmail string
	RecipientName  string
	ClientName     string
	WorkflowLabel  string
	FromStage      string
	ToStage        string
	ByName         string
}

// DeadlineReminder is the payload for an upcoming-deadline email.
type DeadlineReminder struct {
	RecipientEmail string
	RecipientName  string
	ClientName     string
	WorkflowLabel  string
	DueDate        time.Time
	DaysLeft       int
}

type Notifier interface {
	NotifyStageChange(ctx context.Context, n StageChange)
	NotifyDeadlineReminder(ctx context.Context, n DeadlineReminder)
}

type notifier struct {
	log      *zap.Logger
	provider email.Provider
	tmpl     *template.Template
}

func New(log *zap.Logger, provider email.Provider) (Notifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}

	return &notifier{
		log:      log.Named("notification.service"),
		provider: provider,
		tmpl:     tmpl,
	}, nil
}

func (s *notifier) NotifyStageChange(ctx context.Context, n StageChange) {
	subject := fmt.Sprintf("%s: %s moved to %s", n.ClientName, n.WorkflowLabel, n.ToStage)
	s.send(ctx, n.RecipientEmail, subject, "stage_change.html", n)
}

func (s *notifier) NotifyDeadlineReminder(ctx context.Context, n DeadlineReminder) {
	subject := fmt.Sprintf("%s: %s due %s", n.ClientName, n.WorkflowLabel, n.DueDate.Format("2 Jan 2006"))
	s.send(ctx, n.RecipientEmail, subject, "deadline_reminder.html", n)
}

func (s *notifier) send(ctx context.Context, to string, subject string, name string, data any) {
	if to == "" {
		s.log.Debug("notification skipped, no recipient", zap.String("template", name))
		return
	}

	var body bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&body, name, data); err != nil {
		s.log.Error("render notification",
			zap.String("template", name),
			zap.Error(err),
		)
		return
	}

	if err := s.provider.Send(ctx, []string{to}, subject, body.String()); err != nil {
		s.log.Error("send notification",
			zap.String("template", name),
			zap.String("to", to),
			zap.Error(err),
		)
	}
}
