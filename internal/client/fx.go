package client

import (
	"github.com/numericalz/practicehub/internal/client/repository"
	"github.com/numericalz/practicehub/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
