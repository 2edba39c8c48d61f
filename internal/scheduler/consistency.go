package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	obsmetrics "github.com/numericalz/practicehub/internal/observability/metrics"
	"github.com/numericalz/practicehub/internal/workflow"
)

// consistencyTarget pairs a workflow table with its history ledger.
type consistencyTarget struct {
	workflowType workflow.Type
	table        string
	historyTable string
	fkColumn     string
}

var consistencyTargets = []consistencyTarget{
	{workflow.TypeVAT, "vat_quarters", "vat_quarter_histories", "vat_quarter_id"},
	{workflow.TypeLtd, "ltd_accounts_workflows", "ltd_workflow_histories", "workflow_id"},
	{workflow.TypeNonLtd, "non_ltd_accounts_workflows", "non_ltd_workflow_histories", "workflow_id"},
}

type driftRow struct {
	ID           snowflake.ID   `gorm:"column:id"`
	CurrentStage workflow.Stage `gorm:"column:current_stage"`
	HistoryStage workflow.Stage `gorm:"column:history_stage"`
}

// MilestoneConsistencyJob cross-checks every workflow's denormalized
// current stage against the last entry in its history ledger. Drift is
// reported through metrics and warn logs, never repaired automatically:
// a mismatch means a bug wrote around the transition path and deserves a
// human look.
func (s *Scheduler) MilestoneConsistencyJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, "milestone_consistency", s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	var jobErr error
	for _, target := range consistencyTargets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		drifted, err := s.findStageDrift(ctx, target)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			s.logJobError(ctx, run, "consistency check failed", "milestone_consistency", err,
				zap.String("workflow_type", string(target.workflowType)),
			)
			continue
		}
		run.AddProcessed(1)
		if len(drifted) == 0 {
			continue
		}

		obsmetrics.Scheduler().RecordMilestoneDrift(string(target.workflowType), len(drifted))
		for _, row := range drifted {
			s.logger(ctx).Warn("workflow stage disagrees with history ledger",
				zap.String("workflow_type", string(target.workflowType)),
				zap.String("workflow_id", row.ID.String()),
				zap.String("current_stage", string(row.CurrentStage)),
				zap.String("last_history_stage", string(row.HistoryStage)),
			)
		}
	}

	return jobErr
}

// findStageDrift returns workflows whose current stage is not the toStage
// of their newest history entry. Workflows with no history yet are still
// at their initial stage and are excluded.
func (s *Scheduler) findStageDrift(ctx context.Context, target consistencyTarget) ([]driftRow, error) {
	query := fmt.Sprintf(`
		SELECT w.id AS id, w.current_stage AS current_stage, h.to_stage AS history_stage
		FROM %s w
		JOIN %s h ON h.%s = w.id
		WHERE h.id = (
			SELECT h2.id FROM %s h2
			WHERE h2.%s = w.id
			ORDER BY h2.stage_changed_at DESC, h2.id DESC
			LIMIT 1
		)
		AND h.to_stage <> w.current_stage`,
		target.table, target.historyTable, target.fkColumn, target.historyTable, target.fkColumn,
	)

	var rows []driftRow
	if err := s.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
