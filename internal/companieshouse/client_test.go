package companieshouse

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/numericalz/practicehub/internal/config"
)

const profileBody = `{
	"company_name": "Widget Works Ltd",
	"company_number": "01234567",
	"company_status": "active",
	"date_of_creation": "2019-05-20",
	"accounts": {
		"accounting_reference_date": {"day": "31", "month": "12"},
		"last_accounts": {"made_up_to": "2023-12-31"},
		"next_due": "2025-09-30"
	},
	"confirmation_statement": {"next_due": "2025-06-03"}
}`

func newTestAPIClient(t *testing.T, handler http.Handler) (Fetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Config{}
	cfg.CompaniesHouse.BaseURL = server.URL
	cfg.CompaniesHouse.APIKey = "test-key"
	return NewAPIClient(cfg, zaptest.NewLogger(t)), server
}

func TestGetCompanyProfile(t *testing.T) {
	var gotAuth string
	var gotPath string
	fetcher, _ := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(profileBody))
	}))

	profile, err := fetcher.GetCompanyProfile(context.Background(), "1234567")
	assert.NoError(t, err)

	// Key goes out as the basic auth username with an empty password, and
	// short numeric numbers are zero padded.
	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-key:"))
	assert.Equal(t, expected, gotAuth)
	assert.Equal(t, "/company/01234567", gotPath)

	assert.Equal(t, "Widget Works Ltd", profile.CompanyName)
	assert.Equal(t, "01234567", profile.CompanyNumber)
	assert.Equal(t, "active", profile.CompanyStatus)
	assert.Equal(t, 31, profile.ARDDay)
	assert.Equal(t, 12, profile.ARDMonth)
	if assert.NotNil(t, profile.IncorporationDate) {
		assert.Equal(t, time.Date(2019, time.May, 20, 0, 0, 0, 0, time.UTC), *profile.IncorporationDate)
	}
	if assert.NotNil(t, profile.LastAccountsMadeUpTo) {
		assert.Equal(t, time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC), *profile.LastAccountsMadeUpTo)
	}
	if assert.NotNil(t, profile.NextAccountsDue) {
		assert.Equal(t, time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC), *profile.NextAccountsDue)
	}
	if assert.NotNil(t, profile.NextConfirmationDue) {
		assert.Equal(t, time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC), *profile.NextConfirmationDue)
	}
}

func TestGetCompanyProfileErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrCompanyNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"bad key", http.StatusUnauthorized, ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher, _ := newTestAPIClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			_, err := fetcher.GetCompanyProfile(context.Background(), "01234567")
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("missing api key", func(t *testing.T) {
		cfg := config.Config{}
		cfg.CompaniesHouse.BaseURL = "http://localhost:0"
		fetcher := NewAPIClient(cfg, zaptest.NewLogger(t))
		_, err := fetcher.GetCompanyProfile(context.Background(), "01234567")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestNormalizeCompanyNumber(t *testing.T) {
	assert.Equal(t, "01234567", NormalizeCompanyNumber(" 1234567 "))
	assert.Equal(t, "SC123456", NormalizeCompanyNumber("sc123456"))
	assert.Equal(t, "OC301234", NormalizeCompanyNumber("OC301234"))
	assert.Equal(t, "", NormalizeCompanyNumber("  "))
	// Short non-numeric values are left alone apart from case.
	assert.Equal(t, "SC12", NormalizeCompanyNumber("sc12"))
}
