package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/numericalz/practicehub/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	Update(ctx context.Context, db *gorm.DB, client *Client) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Client, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Client, error)
	FindByCompanyNumber(ctx context.Context, db *gorm.DB, companyNumber string) (*Client, error)
	List(ctx context.Context, db *gorm.DB, filter ListClientFilter, page pagination.Pagination) ([]*Client, error)
	// ListRegistryLinked returns active clients holding a company number,
	// stalest registry data first.
	ListRegistryLinked(ctx context.Context, db *gorm.DB) ([]*Client, error)
	CountByCodePrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error)
}
