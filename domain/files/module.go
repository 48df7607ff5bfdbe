package files

import (
	"go.uber.org/fx"
)

// Module provides file import/export dependencies.
var Module = fx.Module("files",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
