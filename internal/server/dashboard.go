package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const defaultDeadlineWindowDays = 30

func (s *Server) GetUserWorkload(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	resp, err := s.dashboardSvc.UserWorkload(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTeamView(c *gin.Context) {
	resp, err := s.dashboardSvc.TeamView(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"workloads": resp}})
}

func (s *Server) GetDeadlineSummary(c *gin.Context) {
	withinDays, err := parseOptionalInt(c.Query("within_days"))
	if err != nil || (withinDays != nil && *withinDays <= 0) {
		AbortWithError(c, newValidationError("within_days", "invalid_within_days", "invalid within_days"))
		return
	}

	days := defaultDeadlineWindowDays
	if withinDays != nil {
		days = *withinDays
	}

	resp, err := s.dashboardSvc.DeadlineSummary(c.Request.Context(), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
