package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	vatdomain "github.com/numericalz/practicehub/internal/vatquarter/domain"
	"github.com/numericalz/practicehub/internal/workflow"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

type createVATQuarterRequest struct {
	ClientID      string `json:"client_id"`
	ReferenceDate string `json:"reference_date"`
}

func (s *Server) CreateVATQuarter(c *gin.Context) {
	var req createVATQuarterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	referenceDate, err := parseOptionalTime(req.ReferenceDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("reference_date", "invalid_reference_date", "invalid reference_date"))
		return
	}

	create := vatdomain.CreateQuarterRequest{
		ClientID: strings.TrimSpace(req.ClientID),
	}
	if referenceDate != nil {
		create.ReferenceDate = *referenceDate
	}

	resp, err := s.vatSvc.CreateQuarter(c.Request.Context(), create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "vat_quarter.create",
		ClientID: &resp.ClientID,
		Details: map[string]any{
			"vat_quarter_id": resp.ID.String(),
			"quarter_period": resp.QuarterPeriod,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListVATQuarters(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ClientID        string `form:"client_id"`
		AssignedUserID  string `form:"assigned_user_id"`
		Stage           string `form:"stage"`
		DueBefore       string `form:"due_before"`
		DueAfter        string `form:"due_after"`
		UncompletedOnly bool   `form:"uncompleted_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueBefore, err := parseOptionalTime(query.DueBefore, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_before", "invalid_due_before", "invalid due_before"))
		return
	}

	dueAfter, err := parseOptionalTime(query.DueAfter, false)
	if err != nil {
		AbortWithError(c, newValidationError("due_after", "invalid_due_after", "invalid due_after"))
		return
	}

	resp, err := s.vatSvc.List(c.Request.Context(), vatdomain.ListQuarterRequest{
		Pagination:      query.Pagination,
		ClientID:        strings.TrimSpace(query.ClientID),
		AssignedUserID:  strings.TrimSpace(query.AssignedUserID),
		Stage:           workflow.Stage(strings.TrimSpace(query.Stage)),
		DueBefore:       dueBefore,
		DueAfter:        dueAfter,
		UncompletedOnly: query.UncompletedOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetVATQuarterByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.vatSvc.GetByID(c.Request.Context(), vatdomain.GetQuarterRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetVATQuarterHistory(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.vatSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"history": resp}})
}

type advanceStageRequest struct {
	TargetStage string `json:"target_stage"`
	Notes       string `json:"notes"`
}

func (s *Server) AdvanceVATQuarterStage(c *gin.Context) {
	var req advanceStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fromStage := s.currentVATStage(c, strings.TrimSpace(c.Param("id")))

	resp, err := s.vatSvc.AdvanceStage(c.Request.Context(), vatdomain.AdvanceStageRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		TargetStage: workflow.Stage(strings.TrimSpace(req.TargetStage)),
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "vat_quarter.stage_advance",
		ClientID: &resp.ClientID,
		Details: map[string]any{
			"vat_quarter_id": resp.ID.String(),
			"from_stage":     string(fromStage),
			"to_stage":       string(resp.CurrentStage),
		},
	})

	s.notifyStageChange(c.Request.Context(), resp.ClientID, resp.AssignedUserID, "VAT Quarter", fromStage, resp.CurrentStage)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) AssignVATQuarter(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseAssigneeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	resp, err := s.vatSvc.Assign(c.Request.Context(), vatdomain.AssignRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		UserID: userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "vat_quarter.assign",
		ClientID: &resp.ClientID,
		Details: map[string]any{
			"vat_quarter_id": resp.ID.String(),
			"user_id":        userID.String(),
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// currentVATStage reads the pre-transition stage for the audit trail and
// the notification mail. Best effort: a miss leaves it empty and the
// service call reports the real error.
func (s *Server) currentVATStage(c *gin.Context, id string) workflow.Stage {
	current, err := s.vatSvc.GetByID(c.Request.Context(), vatdomain.GetQuarterRequest{ID: id})
	if err != nil {
		return ""
	}
	return current.CurrentStage
}

// parseAssigneeID treats an empty user id as "clear the assignment".
func parseAssigneeID(raw string) (snowflake.ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	return snowflake.ParseString(trimmed)
}

func isVATQuarterValidationError(err error) bool {
	switch {
	case errors.Is(err, vatdomain.ErrInvalidID),
		errors.Is(err, vatdomain.ErrClientNotVATEnabled):
		return true
	default:
		return false
	}
}
