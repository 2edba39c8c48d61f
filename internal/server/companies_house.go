package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/numericalz/practicehub/internal/companieshouse"
)

// LookupCompanyProfile fetches a live Companies House profile without
// touching any client record. Used to preview a company before creating
// the client.
func (s *Server) LookupCompanyProfile(c *gin.Context) {
	number := companieshouse.NormalizeCompanyNumber(strings.TrimSpace(c.Param("number")))
	if number == "" {
		AbortWithError(c, newValidationError("number", "invalid_company_number", "invalid company number"))
		return
	}

	resp, err := s.fetcher.GetCompanyProfile(c.Request.Context(), number)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
