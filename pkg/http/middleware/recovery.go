package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/simdev/taskhub/pkg/core/logger"
	"github.com/simdev/taskhub/pkg/http/problems"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrPanic = errors.New("internal server error")

// recoveryMiddleware answers a panicking request with a 500 problem. It sits
// outside the problem middleware, so it writes the response itself.
func recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := append(requestFields(c),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				logger.Get(c).Error("panic recovered", fields...)
				p := problems.New(http.StatusInternalServerError, ErrPanic.Error())
				p.Instance = c.Request.URL.Path
				c.Header("Content-Type", "application/problem+json")
				c.AbortWithStatusJSON(p.Status, p)
			}
		}()
		c.Next()
	}
}

func RecoveryModule(priority int) fx.Option {
	return provide(priority, recoveryMiddleware)
}
