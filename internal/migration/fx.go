package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/numericalz/practicehub/internal/config"
	"github.com/numericalz/practicehub/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.BootstrapPartnerEmail != "" {
			return seed.EnsureBootstrapPartner(conn, cfg.BootstrapPartnerEmail, cfg.BootstrapPartnerPassword)
		}
		return nil
	}),
)
