package bulkpayroll

import (
	"github.com/smallbiznis/workforce/internal/bulkpayroll/liveevents"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/repository"
	"github.com/smallbiznis/workforce/internal/bulkpayroll/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bulkpayroll.service",
	fx.Provide(liveevents.NewHub),
	fx.Provide(liveevents.Listener),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
