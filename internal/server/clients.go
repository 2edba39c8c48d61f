package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	activitydomain "github.com/numericalz/practicehub/internal/activity/domain"
	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/deadline"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

type createClientRequest struct {
	CompanyName           string `json:"company_name"`
	CompanyNumber         string `json:"company_number"`
	CompanyCategory       string `json:"company_category"`
	IncorporationDate     string `json:"incorporation_date"`
	ARDDay                int    `json:"ard_day"`
	ARDMonth              int    `json:"ard_month"`
	VATEnabled            bool   `json:"vat_enabled"`
	VATQuarterGroup       int    `json:"vat_quarter_group"`
	VATRegistrationNumber string `json:"vat_registration_number"`
}

func (s *Server) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	incorporationDate, err := parseOptionalTime(req.IncorporationDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("incorporation_date", "invalid_incorporation_date", "invalid incorporation_date"))
		return
	}

	resp, err := s.clientSvc.Create(c.Request.Context(), clientdomain.CreateClientRequest{
		CompanyName:           strings.TrimSpace(req.CompanyName),
		CompanyNumber:         strings.TrimSpace(req.CompanyNumber),
		CompanyCategory:       clientdomain.Category(strings.TrimSpace(req.CompanyCategory)),
		IncorporationDate:     incorporationDate,
		ARDDay:                req.ARDDay,
		ARDMonth:              req.ARDMonth,
		VATEnabled:            req.VATEnabled,
		VATQuarterGroup:       deadline.QuarterGroup(req.VATQuarterGroup),
		VATRegistrationNumber: strings.TrimSpace(req.VATRegistrationNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "client.create",
		ClientID: &resp.ID,
		Details: map[string]any{
			"client_code":  resp.ClientCode,
			"company_name": resp.CompanyName,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListClients(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Category       string `form:"category"`
		AssignedUserID string `form:"assigned_user_id"`
		ActiveOnly     bool   `form:"active_only"`
		VATEnabledOnly bool   `form:"vat_enabled_only"`
		Search         string `form:"search"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.List(c.Request.Context(), clientdomain.ListClientRequest{
		PageToken:      query.PageToken,
		PageSize:       int32(query.PageSize),
		Category:       clientdomain.Category(strings.TrimSpace(query.Category)),
		AssignedUserID: strings.TrimSpace(query.AssignedUserID),
		ActiveOnly:     query.ActiveOnly,
		VATEnabledOnly: query.VATEnabledOnly,
		Search:         strings.TrimSpace(query.Search),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClientByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.clientSvc.GetByID(c.Request.Context(), clientdomain.GetClientRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateClientRequest struct {
	CompanyName           *string `json:"company_name"`
	CompanyCategory       *string `json:"company_category"`
	IncorporationDate     string  `json:"incorporation_date"`
	ARDDay                *int    `json:"ard_day"`
	ARDMonth              *int    `json:"ard_month"`
	VATEnabled            *bool   `json:"vat_enabled"`
	VATQuarterGroup       *int    `json:"vat_quarter_group"`
	VATRegistrationNumber *string `json:"vat_registration_number"`
}

func (s *Server) UpdateClient(c *gin.Context) {
	var req updateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	incorporationDate, err := parseOptionalTime(req.IncorporationDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("incorporation_date", "invalid_incorporation_date", "invalid incorporation_date"))
		return
	}

	update := clientdomain.UpdateClientRequest{
		ID:                    strings.TrimSpace(c.Param("id")),
		CompanyName:           req.CompanyName,
		IncorporationDate:     incorporationDate,
		ARDDay:                req.ARDDay,
		ARDMonth:              req.ARDMonth,
		VATEnabled:            req.VATEnabled,
		VATRegistrationNumber: req.VATRegistrationNumber,
	}
	if req.CompanyCategory != nil {
		category := clientdomain.Category(strings.TrimSpace(*req.CompanyCategory))
		update.CompanyCategory = &category
	}
	if req.VATQuarterGroup != nil {
		group := deadline.QuarterGroup(*req.VATQuarterGroup)
		update.VATQuarterGroup = &group
	}

	resp, err := s.clientSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "client.update",
		ClientID: &resp.ID,
		Details: map[string]any{
			"client_code": resp.ClientCode,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateClient(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.clientSvc.SoftDelete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	if parsed, err := snowflake.ParseString(id); err == nil {
		s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
			Action:   "client.deactivate",
			ClientID: &parsed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id}})
}

func (s *Server) ReactivateClient(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.clientSvc.Reactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	if parsed, err := snowflake.ParseString(id); err == nil {
		s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
			Action:   "client.reactivate",
			ClientID: &parsed,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id}})
}

// updateAssignmentsRequest mirrors the slot semantics of the service: an
// absent field leaves the slot untouched, an empty string clears it.
type updateAssignmentsRequest struct {
	General        *string `json:"general"`
	LtdAccounts    *string `json:"ltd_accounts"`
	NonLtdAccounts *string `json:"non_ltd_accounts"`
	VAT            *string `json:"vat"`
}

func (s *Server) UpdateClientAssignments(c *gin.Context) {
	var req updateAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := clientdomain.UpdateAssignmentsRequest{
		ID: strings.TrimSpace(c.Param("id")),
	}

	slots := []struct {
		field string
		raw   *string
		dst   **snowflake.ID
	}{
		{"general", req.General, &update.General},
		{"ltd_accounts", req.LtdAccounts, &update.LtdAccounts},
		{"non_ltd_accounts", req.NonLtdAccounts, &update.NonLtdAccounts},
		{"vat", req.VAT, &update.VAT},
	}
	for _, slot := range slots {
		if slot.raw == nil {
			continue
		}
		if strings.TrimSpace(*slot.raw) == "" {
			cleared := snowflake.ID(0)
			*slot.dst = &cleared
			continue
		}
		parsed, err := snowflake.ParseString(strings.TrimSpace(*slot.raw))
		if err != nil {
			AbortWithError(c, newValidationError(slot.field, "invalid_user_id", "invalid user id"))
			return
		}
		*slot.dst = &parsed
	}

	resp, err := s.clientSvc.UpdateAssignments(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "client.assignments_update",
		ClientID: &resp.ID,
		Details: map[string]any{
			"client_code": resp.ClientCode,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RefreshClientFromRegistry(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.syncer.RefreshClient(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.activitySvc.Record(c.Request.Context(), activitydomain.RecordRequest{
		Action:   "client.registry_refresh",
		ClientID: &resp.ID,
		Details: map[string]any{
			"client_code":    resp.ClientCode,
			"company_number": resp.CompanyNumber,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isClientValidationError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrInvalidName),
		errors.Is(err, clientdomain.ErrInvalidCategory),
		errors.Is(err, clientdomain.ErrInvalidQuarterGroup),
		errors.Is(err, clientdomain.ErrInvalidID),
		errors.Is(err, clientdomain.ErrInvalidPageToken),
		errors.Is(err, clientdomain.ErrClientInactive):
		return true
	default:
		return false
	}
}
