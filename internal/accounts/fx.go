package accounts

import (
	"go.uber.org/fx"

	"github.com/numericalz/practicehub/internal/accounts/repository"
	"github.com/numericalz/practicehub/internal/accounts/service"
)

var Module = fx.Module("accounts.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
