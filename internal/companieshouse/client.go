// Package companieshouse talks to the Companies House public data API and
// keeps client records in step with the statutory register.
package companieshouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	clientdomain "github.com/numericalz/practicehub/internal/client/domain"
	"github.com/numericalz/practicehub/internal/config"
	obstracing "github.com/numericalz/practicehub/internal/observability/tracing"
)

var (
	ErrNotConfigured   = errors.New("companies_house_not_configured")
	ErrCompanyNotFound = errors.New("company_not_found")
	ErrRateLimited     = errors.New("companies_house_rate_limited")
	ErrUnauthorized    = errors.New("companies_house_unauthorized")
)

// Fetcher retrieves one company profile by its registered number.
type Fetcher interface {
	GetCompanyProfile(ctx context.Context, companyNumber string) (*clientdomain.RegistryProfile, error)
}

type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// NewAPIClient builds the HTTP fetcher. The API key is sent as the basic
// auth username with an empty password, per the Companies House scheme.
func NewAPIClient(cfg config.Config, logger *zap.Logger) Fetcher {
	return &apiClient{
		baseURL: strings.TrimRight(cfg.CompaniesHouse.BaseURL, "/"),
		apiKey:  cfg.CompaniesHouse.APIKey,
		http:    obstracing.WrapHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		log:     logger.Named("companieshouse.client"),
	}
}

// companyProfile mirrors the fields of GET /company/{companyNumber} that the
// practice consumes. The accounting reference date arrives as day/month
// strings with no year.
type companyProfile struct {
	CompanyName    string `json:"company_name"`
	CompanyNumber  string `json:"company_number"`
	CompanyStatus  string `json:"company_status"`
	DateOfCreation string `json:"date_of_creation"`

	Accounts struct {
		AccountingReferenceDate struct {
			Day   string `json:"day"`
			Month string `json:"month"`
		} `json:"accounting_reference_date"`
		LastAccounts struct {
			MadeUpTo string `json:"made_up_to"`
		} `json:"last_accounts"`
		NextDue string `json:"next_due"`
	} `json:"accounts"`

	ConfirmationStatement struct {
		NextDue string `json:"next_due"`
	} `json:"confirmation_statement"`
}

func (c *apiClient) GetCompanyProfile(ctx context.Context, companyNumber string) (*clientdomain.RegistryProfile, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	number := NormalizeCompanyNumber(companyNumber)
	if number == "" {
		return nil, ErrCompanyNotFound
	}

	url := fmt.Sprintf("%s/company/%s", c.baseURL, number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrCompanyNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("companies house returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile companyProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode company profile: %w", err)
	}
	return mapProfile(profile), nil
}

func mapProfile(p companyProfile) *clientdomain.RegistryProfile {
	out := &clientdomain.RegistryProfile{
		CompanyName:          strings.TrimSpace(p.CompanyName),
		CompanyNumber:        NormalizeCompanyNumber(p.CompanyNumber),
		CompanyStatus:        strings.TrimSpace(p.CompanyStatus),
		IncorporationDate:    parseAPIDate(p.DateOfCreation),
		LastAccountsMadeUpTo: parseAPIDate(p.Accounts.LastAccounts.MadeUpTo),
		NextAccountsDue:      parseAPIDate(p.Accounts.NextDue),
		NextConfirmationDue:  parseAPIDate(p.ConfirmationStatement.NextDue),
	}
	if day, err := strconv.Atoi(p.Accounts.AccountingReferenceDate.Day); err == nil {
		out.ARDDay = day
	}
	if month, err := strconv.Atoi(p.Accounts.AccountingReferenceDate.Month); err == nil {
		out.ARDMonth = month
	}
	return out
}

func parseAPIDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &parsed
}

// NormalizeCompanyNumber uppercases and left-pads purely numeric company
// numbers to the 8 characters the register uses.
func NormalizeCompanyNumber(raw string) string {
	number := strings.ToUpper(strings.TrimSpace(raw))
	if number == "" {
		return ""
	}
	if len(number) < 8 {
		if _, err := strconv.Atoi(number); err == nil {
			number = strings.Repeat("0", 8-len(number)) + number
		}
	}
	return number
}
