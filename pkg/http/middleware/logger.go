package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-ID"

// requestLoggerMiddleware tags the request logger with a request id (taken
// from X-Request-ID or generated) and the trace and span ids, stores it in the request
// context and logs the finished request.
func requestLoggerMiddleware(base *zap.Logger) func() gin.HandlerFunc {
	return func() gin.HandlerFunc {
		return func(c *gin.Context) {
			requestID := c.GetHeader(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Header(HeaderRequestID, requestID)

			log := base.With(append(tracing.LogFields(c.Request.Context()), zap.String("request_id", requestID))...)
			c.Request = c.Request.WithContext(logger.With(c.Request.Context(), log))

			if isHealthPath(c.Request.URL.Path) {
				c.Next()
				return
			}

			start := time.Now()
			c.Next()

			log.Debug("request handled", append(requestFields(c),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("user_agent", c.Request.UserAgent()),
			)...)
		}
	}
}

func RequestLoggerModule(priority int) fx.Option {
	return fx.Provide(
		fx.Annotate(
			func(log *zap.Logger) Middleware {
				return Middleware{Priority: priority, Handler: requestLoggerMiddleware(log)()}
			},
			fx.ResultTags(`group:"gin_mw"`),
		),
	)
}
