package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/internal/deadline"
	"github.com/numericalz/practicehub/pkg/db/pagination"
)

//go:generate mockgen -source=service.go -destination=mocks/service_mock.go -package=mocks

type CreateClientRequest struct {
	CompanyName           string
	CompanyNumber         string
	CompanyCategory       Category
	IncorporationDate     *time.Time
	ARDDay                int
	ARDMonth              int
	VATEnabled            bool
	VATQuarterGroup       deadline.QuarterGroup
	VATRegistrationNumber string
}

type UpdateClientRequest struct {
	ID                    string
	CompanyName           *string
	CompanyCategory       *Category
	IncorporationDate     *time.Time
	ARDDay                *int
	ARDMonth              *int
	VATEnabled            *bool
	VATQuarterGroup       *deadline.QuarterGroup
	VATRegistrationNumber *string
}

// UpdateAssignmentsRequest sets assignment slots. A nil pointer leaves the
// slot untouched; a pointer to zero clears it.
type UpdateAssignmentsRequest struct {
	ID             string
	General        *snowflake.ID
	LtdAccounts    *snowflake.ID
	NonLtdAccounts *snowflake.ID
	VAT            *snowflake.ID
}

type GetClientRequest struct {
	ID string
}

type ListClientRequest struct {
	PageToken      string
	PageSize       int32
	Category       Category
	AssignedUserID string
	ActiveOnly     bool
	VATEnabledOnly bool
	Search         string
}

type ListClientFilter struct {
	Category       Category
	AssignedUserID *snowflake.ID
	ActiveOnly     bool
	VATEnabledOnly bool
	Search         string
	Cursor         *ClientCursor
}

// ClientCursor is the keyset position for created_at desc, id desc paging.
type ClientCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type Service interface {
	Create(context.Context, CreateClientRequest) (Client, error)
	GetByID(context.Context, GetClientRequest) (Client, error)
	GetByCode(ctx context.Context, code string) (Client, error)
	List(context.Context, ListClientRequest) (ListClientResponse, error)
	Update(context.Context, UpdateClientRequest) (Client, error)
	UpdateAssignments(context.Context, UpdateAssignmentsRequest) (Client, error)
	SoftDelete(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
	// HardDelete removes the client and cascades through dependent
	// workflow, history and activity rows in one transaction. Reserved
	// for the bulk delete path.
	HardDelete(ctx context.Context, id string) error
	// ApplyRegistryProfile applies a fetched Companies House profile to
	// the accounting fields and recomputes statutory due dates.
	ApplyRegistryProfile(ctx context.Context, id string, profile RegistryProfile) (Client, error)
}

var (
	ErrInvalidName         = errors.New("invalid_company_name")
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrInvalidQuarterGroup = errors.New("invalid_quarter_group")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrClientNotFound      = errors.New("client_not_found")
	ErrCompanyNumberTaken  = errors.New("company_number_taken")
	ErrClientInactive      = errors.New("client_inactive")
)
