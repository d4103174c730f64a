package modules

import (
	"github.com/simdev/taskhub/pkg/observability"
	"go.uber.org/fx"
)

// NewObservabilityModule provides tracing, metrics and HTTP telemetry.
func NewObservabilityModule(opts ...observability.Option) fx.Option {
	return observability.NewObservabilityModule(opts...)
}
