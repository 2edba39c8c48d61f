package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/numericalz/practicehub/internal/assignment"
	bulkdomain "github.com/numericalz/practicehub/internal/bulk/domain"
	"github.com/numericalz/practicehub/internal/workflow"
)

type bulkClientIDsRequest struct {
	ClientIDs []string `json:"client_ids"`
}

func (s *Server) BulkCreateVATQuarters(c *gin.Context) {
	var req bulkClientIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkSvc.CreateVATQuarters(c.Request.Context(), bulkdomain.CreateVATQuartersRequest{
		ClientIDs: req.ClientIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type bulkUpdateStageRequest struct {
	IDs         []string `json:"ids"`
	TargetStage string   `json:"target_stage"`
	Notes       string   `json:"notes"`
}

func (s *Server) BulkUpdateVATStage(c *gin.Context) {
	s.bulkUpdateStage(c, s.bulkSvc.UpdateVATStage)
}

func (s *Server) BulkUpdateLtdStage(c *gin.Context) {
	s.bulkUpdateStage(c, s.bulkSvc.UpdateLtdStage)
}

func (s *Server) BulkUpdateNonLtdStage(c *gin.Context) {
	s.bulkUpdateStage(c, s.bulkSvc.UpdateNonLtdStage)
}

func (s *Server) bulkUpdateStage(c *gin.Context, run func(ctx context.Context, req bulkdomain.UpdateStageRequest) (bulkdomain.BatchResult, error)) {
	var req bulkUpdateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := run(c.Request.Context(), bulkdomain.UpdateStageRequest{
		IDs:         req.IDs,
		TargetStage: workflow.Stage(strings.TrimSpace(req.TargetStage)),
		Notes:       strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type bulkAssignClientsRequest struct {
	ClientIDs []string `json:"client_ids"`
	Category  string   `json:"category"`
	UserID    string   `json:"user_id"`
}

func (s *Server) BulkAssignClients(c *gin.Context) {
	var req bulkAssignClientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	userID, err := parseAssigneeID(req.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
		return
	}

	resp, err := s.bulkSvc.AssignClients(c.Request.Context(), bulkdomain.AssignClientsRequest{
		ClientIDs: req.ClientIDs,
		Category:  assignment.Category(strings.TrimSpace(req.Category)),
		UserID:    userID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BulkDeleteClients(c *gin.Context) {
	var req bulkClientIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkSvc.DeleteClients(c.Request.Context(), bulkdomain.DeleteClientsRequest{
		ClientIDs: req.ClientIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BulkRefreshCompaniesHouse(c *gin.Context) {
	var req bulkClientIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkSvc.RefreshCompaniesHouse(c.Request.Context(), bulkdomain.RefreshCompaniesHouseRequest{
		ClientIDs: req.ClientIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The refresh runs in the background; 202 tells the caller to poll
	// the job id.
	c.JSON(http.StatusAccepted, gin.H{"data": resp})
}

func (s *Server) GetBulkJob(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.bulkSvc.GetJob(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isBulkValidationError(err error) bool {
	switch {
	case errors.Is(err, bulkdomain.ErrEmptyBatch),
		errors.Is(err, bulkdomain.ErrBatchTooLarge),
		errors.Is(err, bulkdomain.ErrInvalidID),
		errors.Is(err, bulkdomain.ErrInvalidCategory):
		return true
	default:
		return false
	}
}
