package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	userdomain "github.com/numericalz/practicehub/internal/user/domain"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.Create(c.Request.Context(), userdomain.CreateUserRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Role:     userdomain.Role(strings.TrimSpace(req.Role)),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action: "user.create",
		Details: map[string]any{
			"user_id": resp.ID.String(),
			"email":   resp.Email,
			"role":    string(resp.Role),
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListUsers(c *gin.Context) {
	var query struct {
		ActiveOnly bool   `form:"active_only"`
		Role       string `form:"role"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.userSvc.List(c.Request.Context(), userdomain.ListUserRequest{
		ActiveOnly: query.ActiveOnly,
		Role:       userdomain.Role(strings.TrimSpace(query.Role)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUserByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.userSvc.GetByID(c.Request.Context(), userdomain.GetUserRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

func (s *Server) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := userdomain.UpdateUserRequest{
		ID:   strings.TrimSpace(c.Param("id")),
		Name: req.Name,
	}
	if req.Role != nil {
		role := userdomain.Role(strings.TrimSpace(*req.Role))
		update.Role = &role
	}

	resp, err := s.userSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action: "user.update",
		Details: map[string]any{
			"user_id": resp.ID.String(),
			"role":    string(resp.Role),
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.userSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:  "user.deactivate",
		Details: map[string]any{"user_id": id},
	})

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id}})
}

func (s *Server) ReactivateUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.userSvc.Reactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:  "user.reactivate",
		Details: map[string]any{"user_id": id},
	})

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id}})
}

func isUserValidationError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrInvalidName),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidRole),
		errors.Is(err, userdomain.ErrInvalidID),
		errors.Is(err, userdomain.ErrUserInactive):
		return true
	default:
		return false
	}
}
