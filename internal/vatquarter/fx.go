package vatquarter

import (
	"github.com/numericalz/practicehub/internal/vatquarter/repository"
	"github.com/numericalz/practicehub/internal/vatquarter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("vatquarter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
