package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	accountsdomain "github.com/numericalz/practicehub/internal/accounts/domain"
	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/internal/workflow"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

type createWorkflowRequest struct {
	ClientID      string `json:"client_id"`
	ReferenceDate string `json:"reference_date"`
}

func (s *Server) CreateAccountsWorkflow(workflowType workflow.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createWorkflowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		referenceDate, err := parseOptionalTime(req.ReferenceDate, false)
		if err != nil {
			AbortWithError(c, newValidationError("reference_date", "invalid_reference_date", "invalid reference_date"))
			return
		}

		create := accountsdomain.CreateWorkflowRequest{
			Type:     workflowType,
			ClientID: strings.TrimSpace(req.ClientID),
		}
		if referenceDate != nil {
			create.ReferenceDate = *referenceDate
		}

		resp, err := s.accountsSvc.CreateWorkflow(c.Request.Context(), create)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
			Action:   accountsAction(workflowType, "create"),
			ClientID: &resp.ClientID,
			Details: map[string]any{
				"workflow_id":       resp.ID.String(),
				"filing_period_end": resp.FilingPeriodEnd.Format(dateOnlyLayout),
			},
		})

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) ListAccountsWorkflows(workflowType workflow.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		workflows, pageInfo, err := s.accountsSvc.List(c.Request.Context(), accountsdomain.ListWorkflowRequest{
			Pagination:      query.Pagination,
			Type:            workflowType,
			ClientID:        strings.TrimSpace(query.ClientID),
			AssignedUserID:  strings.TrimSpace(query.AssignedUserID),
			Stage:           strings.TrimSpace(query.Stage),
			DueBefore:       dueBefore,
			DueAfter:        dueAfter,
			UncompletedOnly: query.UncompletedOnly,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": gin.H{
			"workflows": workflows,
			"page_info": pageInfo,
		}})
	}
}

func (s *Server) GetAccountsWorkflowByID(workflowType workflow.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := s.accountsSvc.GetByID(c.Request.Context(), accountsdomain.GetWorkflowRequest{
			Type: workflowType,
			ID:   strings.TrimSpace(c.Param("id")),
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) GetAccountsWorkflowHistory(workflowType workflow.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := s.accountsSvc.History(c.Request.Context(), accountsdomain.HistoryRequest{
			Type: workflowType,
			ID:   strings.TrimSpace(c.Param("id")),
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": gin.H{"history": resp}})
	}
}

func (s *Server) AdvanceAccountsWorkflowStage(workflowType workflow.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req advanceStageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		id := strings.TrimSpace(c.Param("id"))
		fromStage := s.currentAccountsStage(c, workflowType, id)

		resp, err := s.accountsSvc.AdvanceStage(c.Request.Context(), accountsdomain.AdvanceStageRequest{
			Type:        workflowType,
			ID:          id,
			TargetStage: workflow.Stage(strings.TrimSpace(req.TargetStage)),
			Notes:       strings.TrimSpace(req.Notes),
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
			Action:   accountsAction(workflowType, "stage_advance"),
			ClientID: &resp.ClientID,
			Details: map[string]any{
				"workflow_id": resp.ID.String(),
				"from_stage":  string(fromStage),
				"to_stage":    string(resp.CurrentStage),
			},
		})

		s.notifyStageChange(c.Request.Context(), resp.ClientID, resp.AssignedUserID, accountsLabel(workflowType), fromStage, resp.CurrentStage)

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) AssignAccountsWorkflow(workflowType workflow.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		resp, err := s.accountsSvc.Assign(c.Request.Context(), accountsdomain.AssignRequest{
			Type:   workflowType,
			ID:     strings.TrimSpace(c.Param("id")),
			UserID: userID,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
			Action:   accountsAction(workflowType, "assign"),
			ClientID: &resp.ClientID,
			Details: map[string]any{
				"workflow_id": resp.ID.String(),
				"user_id":     userID.String(),
			},
		})

		c.JSON(http.StatusOK, gin.H{"data": resp})
	}
}

func (s *Server) currentAccountsStage(c *gin.Context, workflowType workflow.Type, id string) workflow.Stage {
	current, err := s.accountsSvc.GetByID(c.Request.Context(), accountsdomain.GetWorkflowRequest{
		Type: workflowType,
		ID:   id,
	})
	if err != nil {
		return ""
	}
	return current.CurrentStage
}

func accountsAction(workflowType workflow.Type, verb string) string {
	if workflowType == workflow.TypeLtd {
		return "ltd_workflow." + verb
	}
	return "non_ltd_workflow." + verb
}

func accountsLabel(workflowType workflow.Type) string {
	if workflowType == workflow.TypeLtd {
		return "Ltd Accounts"
	}
	return "Non-Ltd Accounts"
}

func isAccountsValidationError(err error) bool {
	switch {
	case errors.Is(err, accountsdomain.ErrInvalidID),
		errors.Is(err, accountsdomain.ErrInvalidType),
		errors.Is(err, accountsdomain.ErrInvalidPageToken),
		errors.Is(err, accountsdomain.ErrClientCategoryMismatch):
		return true
	default:
		return false
	}
}
