package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/http/problems"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// errorLoggerMiddleware logs handler errors. Client errors are logged at warn.
func errorLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		log := logger.Get(c)
		for _, e := range c.Errors {
			fields := append(requestFields(c), zap.Int("status", c.Writer.Status()), zap.Error(e.Err))
			var p *problems.Problem
			if errors.As(e.Err, &p) && p.Status < 500 {
				log.Warn("request rejected", fields...)
				continue
			}
			log.Error("request failed", fields...)
		}
	}
}

func ErrorLoggerModule(priority int) fx.Option {
	return provide(priority, errorLoggerMiddleware)
}
