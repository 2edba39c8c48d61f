package workflow

import (
	"errors"
	"time"
)

var (
	ErrInvalidStage = errors.New("invalid_stage")
	ErrNotFound     = errors.New("workflow_not_found")
)

// Record is the mutable view of a workflow row the transition helper
// drives. ApplyMilestone must stamp the milestone matching the stage only
// when it has not been stamped before; already-stamped milestones are
// never overwritten.
type Record interface {
	WorkflowType() Type
	Stage() Stage
	SetStage(stage Stage, completed bool)
	ApplyMilestone(stage Stage, at time.Time, userName string)
}

// Change describes one applied transition, ready to be appended to the
// workflow's history ledger by the caller.
type Change struct {
	From      Stage
	To        Stage
	Completed bool
	ChangedAt time.Time
}

// Transition validates the target stage and mutates rec in memory. The
// caller persists rec and the history row in a single transaction. No
// ordering restriction is applied on single-record advances; manual
// regression is permitted.
func Transition(rec Record, target Stage, at time.Time, userName string) (Change, error) {
	t := rec.WorkflowType()
	if !IsValidStage(t, target) {
		return Change{}, ErrInvalidStage
	}

	from := rec.Stage()
	completed := IsTerminal(t, target)
	rec.SetStage(target, completed)
	rec.ApplyMilestone(target, at, userName)

	return Change{
		From:      from,
		To:        target,
		Completed: completed,
		ChangedAt: at,
	}, nil
}
