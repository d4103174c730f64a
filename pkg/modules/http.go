package modules

import (
	"github.com/simdev/taskhub/pkg/http/health"
	"github.com/simdev/taskhub/pkg/http/middleware"
	"github.com/simdev/taskhub/pkg/http/server"
	"go.uber.org/fx"
)

// NewHTTPModule provides the gin engine with its middleware chain, the
// health routes and the HTTP server. Services register their own routes on *gin.Engine.
func NewHTTPModule(opts ...server.Option) fx.Option {
	return fx.Options(
		middleware.NewGinModule(),
		health.NewHealthRoutesModule(),
		server.NewHTTPServerModule(opts...),
	)
}
