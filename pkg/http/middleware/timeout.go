package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/http/problems"
	"github.com/simdev/taskhub/pkg/http/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrRequestTimeout = errors.New("request timeout")

// timeoutMiddleware bounds the request context. Handlers observe the deadline
// through ctx. A request that ends past the deadline without a response is
// answered with 504.
func timeoutMiddleware(conf server.TimeoutConfig, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isHealthPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), conf.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			log.Warn("request timed out",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Duration("timeout", conf.RequestTimeout),
			)
			p := problems.GatewayTimeout(ErrRequestTimeout.Error())
			p.Instance = c.Request.URL.Path
			c.Header("Content-Type", "application/problem+json")
			c.AbortWithStatusJSON(p.Status, p)
		}
	}
}

func TimeoutModule(priority int) fx.Option {
	return fx.Provide(
		fx.Annotate(
			func(conf server.Config, log *zap.Logger) Middleware {
				if !*conf.Timeout.Enabled {
					return Middleware{Priority: priority}
				}
				return Middleware{Priority: priority, Handler: timeoutMiddleware(conf.Timeout, log)}
			},
			fx.ResultTags(`group:"gin_mw"`),
		),
	)
}
