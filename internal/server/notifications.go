package server

import (
	"context"

	"github.com/bwmarrin/snowflake"

	"github.com/numericalz/practicehub/internal/actorcontext"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/notification"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

// notifyStageChange mails the assignee after a successful transition.
// Best effort: unassigned work, inactive users and lookup misses are
// silently skipped, and the notifier itself never returns an error.
func (s *Server) notifyStageChange(ctx context.Context, clientID snowflake.ID, assignedUserID *snowflake.ID, label string, from, to workflow.Stage) {
	if assignedUserID == nil || *assignedUserID == 0 {
		return
	}

	assignee, err := s.userSvc.GetByID(ctx, userdomain.GetUserRequest{ID: assignedUserID.String()})
	if err != nil || !assignee.IsActive {
		return
	}

	client, err := s.clientSvc.GetByID(ctx, clientdomain.GetClientRequest{ID: clientID.String()})
	if err != nil {
		return
	}

	byName := ""
	if actor, ok := actorcontext.ActorFromContext(ctx); ok {
		byName = actor.Name
	}

	s.notifier.NotifyStageChange(ctx, notification.StageChange{
		RecipientEmail: assignee.Email,
		RecipientName:  assignee.Name,
		ClientName:     client.CompanyName,
		WorkflowLabel:  label,
		FromStage:      string(from),
		ToStage:        string(to),
		ByName:         byName,
	})
}
