package middleware

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Middleware is a gin handler ordered by Priority, lower first.
type Middleware struct {
	Priority int
	Handler  gin.HandlerFunc
}

type middlewaresIn struct {
	fx.In
	Middlewares []Middleware `group:"gin_mw"`
}

// NewGinModule provides the gin engine with the standard chain:
//
//	10 - Timeout
//	40 - Recovery
//	50 - RequestLogger
//	70 - ErrorLogger
//	80 - Problem
//
// Other packages contribute to the chain through the gin_mw group.
func NewGinModule() fx.Option {
	return fx.Options(
		TimeoutModule(10),
		RecoveryModule(40),
		RequestLoggerModule(50),
		ErrorLoggerModule(70),
		ProblemModule(80),
		fx.Provide(provideGinAndHandler),
	)
}

func provideGinAndHandler(in middlewaresIn) (*gin.Engine, http.Handler) {
	e := newEngine(in.Middlewares)
	return e, e
}

func newEngine(mws []Middleware) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New(func(e *gin.Engine) {
		e.ContextWithFallback = true
	})

	sort.SliceStable(mws, func(i, j int) bool { return mws[i].Priority < mws[j].Priority })
	for _, m := range mws {
		if m.Handler != nil {
			engine.Use(m.Handler)
		}
	}
	return engine
}

func provide(priority int, handler func() gin.HandlerFunc) fx.Option {
	return fx.Provide(
		fx.Annotate(
			func() Middleware { return Middleware{Priority: priority, Handler: handler()} },
			fx.ResultTags(`group:"gin_mw"`),
		),
	)
}

func requestFields(c *gin.Context) []zap.Field {
	return []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("query", c.Request.URL.RawQuery),
		zap.String("client_ip", c.ClientIP()),
	}
}

func isHealthPath(path string) bool {
	return path == "/health/live" || path == "/health/ready"
}
