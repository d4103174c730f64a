package observability

import (
	appconfig "github.com/simdev/taskhub/pkg/core/config"
	"github.com/simdev/taskhub/pkg/http/middleware"
	otelconfig "github.com/simdev/taskhub/pkg/observability/config"
	otelinternal "github.com/simdev/taskhub/pkg/observability/internal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// httpTelemetryPriority places request spans ahead of the request logger so log lines carry trace_id.
const httpTelemetryPriority = 5

type httpTelemetryParams struct {
	fx.In
	Cfg    otelconfig.Config
	AppCfg appconfig.AppConfig
	TP     trace.TracerProvider
	MP     metric.MeterProvider
}

func newHTTPTelemetryModule() fx.Option {
	return fx.Provide(
		fx.Annotate(
			httpTelemetryMiddleware,
			fx.ResultTags(`group:"gin_mw"`),
		),
	)
}

func httpTelemetryMiddleware(p httpTelemetryParams) middleware.Middleware {
	if !p.Cfg.Tracing.Enabled && !p.Cfg.Metrics.Enabled {
		return middleware.Middleware{}
	}
	return middleware.Middleware{
		Priority: httpTelemetryPriority,
		Handler: otelgin.Middleware(p.AppCfg.ServiceName,
			otelgin.WithTracerProvider(p.TP),
			otelgin.WithMeterProvider(p.MP),
			otelgin.WithGinFilter(otelinternal.FilterPaths),
		),
	}
}
