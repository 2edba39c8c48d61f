package bulk

import (
	"go.uber.org/fx"

	"github.com/numericalz/practicehub/internal/bulk/repository"
	"github.com/numericalz/practicehub/internal/bulk/service"
)

var Module = fx.Module("bulk.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
