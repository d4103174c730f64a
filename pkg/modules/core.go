package modules

import (
	"github.com/simdev/taskhub/pkg/core"
	"go.uber.org/fx"
)

// NewCoreModule provides config, logger, readiness and the worker runner.
func NewCoreModule(opts ...core.Option) fx.Option {
	return core.NewCoreModule(opts...)
}
