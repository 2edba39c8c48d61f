package user

import (
	"github.com/numericalz/practicehub/internal/user/repository"
	"github.com/numericalz/practicehub/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
