package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStageOrders(t *testing.T) {
	assert.Len(t, Order(TypeVAT), 11)
	assert.Len(t, Order(TypeLtd), 14)
	assert.Len(t, Order(TypeNonLtd), 11)
	assert.Nil(t, Order(Type("unknown")))
}

func TestEveryStageHasDisplayName(t *testing.T) {
	for _, wfType := range []Type{TypeVAT, TypeLtd, TypeNonLtd} {
		for _, stage := range Order(wfType) {
			name, ok := displayNames[stage]
			assert.True(t, ok, "stage %s has no display name", stage)
			assert.NotEmpty(t, name)
		}
		alt := terminalAlternatives[wfType]
		_, ok := displayNames[alt]
		assert.True(t, ok, "terminal alternative %s has no display name", alt)
	}
}

func TestInitialStage(t *testing.T) {
	assert.Equal(t, StagePaperworkPendingChase, InitialStage(TypeVAT))
	assert.Equal(t, StageWaitingForYearEnd, InitialStage(TypeLtd))
	assert.Equal(t, StageWaitingForYearEnd, InitialStage(TypeNonLtd))
	assert.Equal(t, Stage(""), InitialStage(Type("unknown")))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(TypeVAT, StageFiledToHMRC))
	assert.True(t, IsTerminal(TypeVAT, StageClientBookkeeping))
	assert.False(t, IsTerminal(TypeVAT, StageClientApproved))

	assert.True(t, IsTerminal(TypeLtd, StageFiledToCompaniesHouse))
	assert.True(t, IsTerminal(TypeLtd, StageClientSelfFiling))
	assert.False(t, IsTerminal(TypeLtd, StageSubmissionApprovedPartner))

	assert.True(t, IsTerminal(TypeNonLtd, StageFiledToHMRC))
	assert.True(t, IsTerminal(TypeNonLtd, StageClientSelfFiling))
	assert.False(t, IsTerminal(TypeNonLtd, StageApprovedByClient))
}

func TestProgressPercent(t *testing.T) {
	for _, wfType := range []Type{TypeVAT, TypeLtd, TypeNonLtd} {
		order := Order(wfType)
		prev := 0
		for _, stage := range order {
			pct := ProgressPercent(wfType, stage)
			assert.Greater(t, pct, prev, "%s/%s progress must be strictly increasing", wfType, stage)
			prev = pct
		}
		assert.Equal(t, 100, ProgressPercent(wfType, order[len(order)-1]))
		assert.Equal(t, 100, ProgressPercent(wfType, terminalAlternatives[wfType]))
	}

	assert.Equal(t, 0, ProgressPercent(TypeVAT, Stage("NOT_A_STAGE")))
	assert.Equal(t, 9, ProgressPercent(TypeVAT, StagePaperworkPendingChase))
	assert.Equal(t, 36, ProgressPercent(TypeLtd, StageWorkInProgress))
}

func TestIsValidStage(t *testing.T) {
	assert.True(t, IsValidStage(TypeVAT, StageQueriesPending))
	assert.True(t, IsValidStage(TypeVAT, StageClientBookkeeping))
	assert.False(t, IsValidStage(TypeVAT, StageReviewDoneHelloSign))
	assert.False(t, IsValidStage(TypeLtd, StageClientBookkeeping))
	assert.False(t, IsValidStage(TypeVAT, Stage("")))
}

type fakeRecord struct {
	wfType     Type
	stage      Stage
	completed  bool
	milestones map[Stage]time.Time
}

func (r *fakeRecord) WorkflowType() Type { return r.wfType }
func (r *fakeRecord) Stage() Stage       { return r.stage }

func (r *fakeRecord) SetStage(stage Stage, completed bool) {
	r.stage = stage
	r.completed = completed
}

func (r *fakeRecord) ApplyMilestone(stage Stage, at time.Time, _ string) {
	if r.milestones == nil {
		r.milestones = make(map[Stage]time.Time)
	}
	if _, ok := r.milestones[stage]; ok {
		return
	}
	r.milestones[stage] = at
}

func TestTransition(t *testing.T) {
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rejects stage from another workflow type", func(t *testing.T) {
		rec := &fakeRecord{wfType: TypeVAT, stage: StageWorkInProgress}
		_, err := Transition(rec, StageReviewDoneHelloSign, now, "Jane")
		assert.ErrorIs(t, err, ErrInvalidStage)
		assert.Equal(t, StageWorkInProgress, rec.stage)
	})

	t.Run("advances and stamps milestone", func(t *testing.T) {
		rec := &fakeRecord{wfType: TypeVAT, stage: StagePaperworkPendingChase}
		change, err := Transition(rec, StagePaperworkReceived, now, "Jane")
		assert.NoError(t, err)
		assert.Equal(t, StagePaperworkPendingChase, change.From)
		assert.Equal(t, StagePaperworkReceived, change.To)
		assert.False(t, change.Completed)
		assert.Equal(t, now, rec.milestones[StagePaperworkReceived])
	})

	t.Run("terminal stage completes the workflow", func(t *testing.T) {
		rec := &fakeRecord{wfType: TypeVAT, stage: StageClientApproved}
		change, err := Transition(rec, StageFiledToHMRC, now, "Jane")
		assert.NoError(t, err)
		assert.True(t, change.Completed)
		assert.True(t, rec.completed)
	})

	t.Run("regression keeps earlier milestone", func(t *testing.T) {
		rec := &fakeRecord{wfType: TypeVAT, stage: StagePaperworkPendingChase}
		_, err := Transition(rec, StageWorkInProgress, now, "Jane")
		assert.NoError(t, err)
		_, err = Transition(rec, StagePaperworkReceived, now.Add(time.Hour), "Jane")
		assert.NoError(t, err)
		later := now.Add(2 * time.Hour)
		_, err = Transition(rec, StageWorkInProgress, later, "Jane")
		assert.NoError(t, err)
		assert.Equal(t, now, rec.milestones[StageWorkInProgress], "milestone must keep first stamp")
	})
}
