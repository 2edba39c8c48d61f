// Package workflow defines the per-type stage model for filing workflows
// and the shared transition helper that services drive their state changes
// through.
package workflow

import "math"

// Type discriminates the three workflow families.
type Type string

const (
	TypeVAT    Type = "VAT"
	TypeLtd    Type = "LTD_ACCOUNTS"
	TypeNonLtd Type = "NON_LTD_ACCOUNTS"
)

// Stage is one step of a workflow's linear progression.
type Stage string

const (
	StageWaitingForYearEnd         Stage = "WAITING_FOR_YEAR_END"
	StagePaperworkPendingChase     Stage = "PAPERWORK_PENDING_CHASE"
	StagePaperworkChased           Stage = "PAPERWORK_CHASED"
	StagePaperworkReceived         Stage = "PAPERWORK_RECEIVED"
	StageWorkInProgress            Stage = "WORK_IN_PROGRESS"
	StageQueriesPending            Stage = "QUERIES_PENDING"
	StageReviewPendingManager      Stage = "REVIEW_PENDING_MANAGER"
	StageReviewPendingPartner      Stage = "REVIEW_PENDING_PARTNER"
	StageEmailedToPartner          Stage = "EMAILED_TO_PARTNER"
	StageEmailedToClient           Stage = "EMAILED_TO_CLIENT"
	StageClientApproved            Stage = "CLIENT_APPROVED"
	StageFiledToHMRC               Stage = "FILED_TO_HMRC"
	StageClientBookkeeping         Stage = "CLIENT_BOOKKEEPING"
	StageDiscussWithManager        Stage = "DISCUSS_WITH_MANAGER"
	StageReviewedByManager         Stage = "REVIEWED_BY_MANAGER"
	StageReviewByPartner           Stage = "REVIEW_BY_PARTNER"
	StageReviewedByPartner         Stage = "REVIEWED_BY_PARTNER"
	StageReviewDoneHelloSign       Stage = "REVIEW_DONE_HELLO_SIGN"
	StageSentToClientHelloSign     Stage = "SENT_TO_CLIENT_HELLO_SIGN"
	StageApprovedByClient          Stage = "APPROVED_BY_CLIENT"
	StageSubmissionApprovedPartner Stage = "SUBMISSION_APPROVED_PARTNER"
	StageFiledToCompaniesHouse     Stage = "FILED_TO_COMPANIES_HOUSE_HMRC"
	StageClientSelfFiling          Stage = "CLIENT_SELF_FILING"
	StageApprovedByPartner         Stage = "APPROVED_BY_PARTNER"
	StageSentToClient              Stage = "SENT_TO_CLIENT"
)

var vatOrder = []Stage{
	StagePaperworkPendingChase,
	StagePaperworkChased,
	StagePaperworkReceived,
	StageWorkInProgress,
	StageQueriesPending,
	StageReviewPendingManager,
	StageReviewPendingPartner,
	StageEmailedToPartner,
	StageEmailedToClient,
	StageClientApproved,
	StageFiledToHMRC,
}

var ltdOrder = []Stage{
	StageWaitingForYearEnd,
	StagePaperworkPendingChase,
	StagePaperworkChased,
	StagePaperworkReceived,
	StageWorkInProgress,
	StageDiscussWithManager,
	StageReviewedByManager,
	StageReviewByPartner,
	StageReviewedByPartner,
	StageReviewDoneHelloSign,
	StageSentToClientHelloSign,
	StageApprovedByClient,
	StageSubmissionApprovedPartner,
	StageFiledToCompaniesHouse,
}

var nonLtdOrder = []Stage{
	StageWaitingForYearEnd,
	StagePaperworkPendingChase,
	StagePaperworkChased,
	StagePaperworkReceived,
	StageWorkInProgress,
	StageDiscussWithManager,
	StageReviewByPartner,
	StageApprovedByPartner,
	StageSentToClient,
	StageApprovedByClient,
	StageFiledToHMRC,
}

// terminalAlternatives are branch stages outside the main line. They are
// terminal and map to 100% progress.
var terminalAlternatives = map[Type]Stage{
	TypeVAT:    StageClientBookkeeping,
	TypeLtd:    StageClientSelfFiling,
	TypeNonLtd: StageClientSelfFiling,
}

var displayNames = map[Stage]string{
	StageWaitingForYearEnd:         "Waiting for year end",
	StagePaperworkPendingChase:     "Paperwork pending chase",
	StagePaperworkChased:           "Paperwork chased",
	StagePaperworkReceived:         "Paperwork received",
	StageWorkInProgress:            "Work in progress",
	StageQueriesPending:            "Queries pending",
	StageReviewPendingManager:      "Review pending by manager",
	StageReviewPendingPartner:      "Review pending by partner",
	StageEmailedToPartner:          "Emailed to partner",
	StageEmailedToClient:           "Emailed to client",
	StageClientApproved:            "Client approved",
	StageFiledToHMRC:               "Filed to HMRC",
	StageClientBookkeeping:         "Client does own bookkeeping",
	StageDiscussWithManager:        "To discuss with manager",
	StageReviewedByManager:         "Reviewed by manager",
	StageReviewByPartner:           "To review by partner",
	StageReviewedByPartner:         "Reviewed by partner",
	StageReviewDoneHelloSign:       "Review done, HelloSign to client",
	StageSentToClientHelloSign:     "Sent to client on HelloSign",
	StageApprovedByClient:          "Approved by client",
	StageSubmissionApprovedPartner: "Submission approved by partner",
	StageFiledToCompaniesHouse:     "Filed to Companies House and HMRC",
	StageClientSelfFiling:          "Client files their own accounts",
	StageApprovedByPartner:         "Approved by partner",
	StageSentToClient:              "Sent to client",
}

// Order returns the main-line stage progression for a workflow type.
func Order(t Type) []Stage {
	switch t {
	case TypeVAT:
		return vatOrder
	case TypeLtd:
		return ltdOrder
	case TypeNonLtd:
		return nonLtdOrder
	}
	return nil
}

// InitialStage is the first stage of the main line.
func InitialStage(t Type) Stage {
	order := Order(t)
	if len(order) == 0 {
		return ""
	}
	return order[0]
}

// DisplayName maps a stage to its human label, falling back to the raw
// value for unknown stages.
func DisplayName(stage Stage) string {
	if name, ok := displayNames[stage]; ok {
		return name
	}
	return string(stage)
}

// IsValidStage reports whether stage belongs to the type's enumeration,
// including the terminal alternative.
func IsValidStage(t Type, stage Stage) bool {
	if terminalAlternatives[t] == stage && stage != "" {
		return true
	}
	for _, s := range Order(t) {
		if s == stage {
			return true
		}
	}
	return false
}

// IsTerminal reports whether stage completes the workflow.
func IsTerminal(t Type, stage Stage) bool {
	if terminalAlternatives[t] == stage && stage != "" {
		return true
	}
	order := Order(t)
	return len(order) > 0 && order[len(order)-1] == stage
}

// ProgressPercent computes round(100*(idx+1)/total) over the main line.
// Terminal alternatives report 100; unknown stages report 0.
func ProgressPercent(t Type, stage Stage) int {
	if terminalAlternatives[t] == stage && stage != "" {
		return 100
	}
	order := Order(t)
	for i, s := range order {
		if s == stage {
			return int(math.Round(100 * float64(i+1) / float64(len(order))))
		}
	}
	return 0
}
