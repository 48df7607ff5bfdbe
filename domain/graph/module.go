package graph

import (
	"go.uber.org/fx"
)

// Module provides graph domain dependencies. The service takes its Store
// and Mirror as interfaces; the concrete repository and mirror are bound
// here and in the mirror module.
var Module = fx.Module("graph",
	fx.Provide(
		fx.Annotate(NewRepository, fx.As(new(Store))),
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
