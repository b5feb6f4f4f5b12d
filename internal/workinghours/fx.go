package workinghours

import (
	"github.com/smallbiznis/workforce/internal/workinghours/repository"
	"github.com/smallbiznis/workforce/internal/workinghours/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workinghours.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
