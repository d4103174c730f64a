package health

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// NewHealthRoutesModule serves the liveness and readiness probes. /health is
// outside every service's OpenAPI document, so request validation skips it.
func NewHealthRoutesModule() fx.Option {
	return fx.Module("health-routes",
		fx.Provide(fx.Private, newHealthHandler),
		fx.Invoke(registerHealthRoutes),
	)
}

func registerHealthRoutes(r *gin.Engine, h *healthHandler) {
	g := r.Group("/health")
	g.GET("/live", h.IsLive)
	g.GET("/ready", h.IsReady)
}
