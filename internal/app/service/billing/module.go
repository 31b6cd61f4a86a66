package billing

import "go.uber.org/fx"

// Module exposes the billing record store via Fx.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewGormStore, fx.As(new(Store))),
	),
)
