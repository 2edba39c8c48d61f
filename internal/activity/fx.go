package activity

import (
	"github.com/numericalz/practicehub/internal/activity/repository"
	"github.com/numericalz/practicehub/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
