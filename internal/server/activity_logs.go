package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

func (s *Server) ListActivityLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Action   string `form:"action"`
		UserID   string `form:"user_id"`
		ClientID string `form:"client_id"`
		StartAt  string `form:"start_at"`
		EndAt    string `form:"end_at"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}

	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	resp, err := s.activitySvc.List(c.Request.Context(), activitydomain.ListActivityRequest{
		Pagination: query.Pagination,
		Action:     strings.TrimSpace(query.Action),
		UserID:     strings.TrimSpace(query.UserID),
		ClientID:   strings.TrimSpace(query.ClientID),
		StartAt:    startAt,
		EndAt:      endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isActivityValidationError(err error) bool {
	switch {
	case errors.Is(err, activitydomain.ErrInvalidAction),
		errors.Is(err, activitydomain.ErrInvalidPageToken),
		errors.Is(err, activitydomain.ErrInvalidTimeRange),
		errors.Is(err, activitydomain.ErrInvalidID):
		return true
	default:
		return false
	}
}
