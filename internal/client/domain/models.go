package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/deadline"
)

type Category string

const (
	CategoryLimitedCompany    Category = "LIMITED_COMPANY"
	CategoryNonLimitedCompany Category = "NON_LIMITED_COMPANY"
	CategoryDirector          Category = "DIRECTOR"
	CategorySubContractor     Category = "SUB_CONTRACTOR"
)

func ValidCategory(category Category) bool {
	switch category {
	case CategoryLimitedCompany, CategoryNonLimitedCompany, CategoryDirector, CategorySubContractor:
		return true
	}
	return false
}

// Client is a filing entity on the practice's books. The accounting
// reference date is stored as a year-less day/month pair; the applicable
// year is always derived through the deadline calculator, never stored.
type Client struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientCode      string       `gorm:"not null;uniqueIndex" json:"client_code"`
	CompanyName     string       `gorm:"not null" json:"company_name"`
	CompanyNumber   *string      `gorm:"uniqueIndex" json:"company_number,omitempty"`
	CompanyCategory Category     `gorm:"not null;index" json:"company_category"`

	IncorporationDate    *time.Time `json:"incorporation_date,omitempty"`
	LastAccountsMadeUpTo *time.Time `json:"last_accounts_made_up_to,omitempty"`
	ARDDay               int        `gorm:"column:ard_day" json:"ard_day"`
	ARDMonth             int        `gorm:"column:ard_month" json:"ard_month"`
	NextAccountsDue      *time.Time `json:"next_accounts_due,omitempty"`
	NextConfirmationDue  *time.Time `json:"next_confirmation_due,omitempty"`
	CompanyStatus        string     `json:"company_status,omitempty"`

	VATEnabled            bool                  `gorm:"not null;default:false;index" json:"vat_enabled"`
	VATQuarterGroup       deadline.QuarterGroup `json:"vat_quarter_group,omitempty"`
	VATRegistrationNumber string                `json:"vat_registration_number,omitempty"`

	IsActive bool `gorm:"not null;default:true;index" json:"is_active"`

	AssignedUserID       *snowflake.ID `gorm:"index" json:"assigned_user_id,omitempty"`
	LtdAssignedUserID    *snowflake.ID `json:"ltd_assigned_user_id,omitempty"`
	NonLtdAssignedUserID *snowflake.ID `json:"non_ltd_assigned_user_id,omitempty"`
	VATAssignedUserID    *snowflake.ID `json:"vat_assigned_user_id,omitempty"`

	RegistryRefreshedAt *time.Time `json:"registry_refreshed_at,omitempty"`
	CreatedAt           time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }

// AccountingData projects the client's registry fields into the deadline
// calculator's input.
func (c *Client) AccountingData() deadline.ClientAccountingData {
	return deadline.ClientAccountingData{
		IncorporationDate:    c.IncorporationDate,
		LastAccountsMadeUpTo: c.LastAccountsMadeUpTo,
		NextAccountsDue:      c.NextAccountsDue,
		ARDDay:               c.ARDDay,
		ARDMonth:             c.ARDMonth,
	}
}

// RegistryProfile is the subset of a Companies House company profile the
// client record consumes on refresh.
type RegistryProfile struct {
	CompanyName          string
	CompanyNumber        string
	CompanyStatus        string
	IncorporationDate    *time.Time
	ARDDay               int
	ARDMonth             int
	LastAccountsMadeUpTo *time.Time
	NextAccountsDue      *time.Time
	NextConfirmationDue  *time.Time
}
