package existence

import (
	"github.com/simdev/taskhub/pkg/http/client"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewExistenceModule provides a *Cache backed by the HTTP client configured
// under clients.<clientName>.
func NewExistenceModule(clientName string) fx.Option {
	return fx.Module("existence",
		fx.Provide(
			newConfig,
			func(v *viper.Viper, tp trace.TracerProvider) (Checker, error) {
				cfg, err := client.LoadConfig(v, clientName)
				if err != nil {
					return nil, err
				}
				return NewHTTPChecker(client.New(cfg, tp), cfg.BaseURL), nil
			},
			provideCache,
		),
	)
}

func provideCache(checker Checker, cfg Config, mp metric.MeterProvider, log *zap.Logger) (*Cache, error) {
	c, err := NewCache(checker, cfg, mp, log)
	if err != nil {
		return nil, err
	}
	log.Info("existence cache configured",
		zap.Duration("ttl", cfg.TTL),
		zap.Bool("fail_open", cfg.FailOpenEnabled()),
		zap.Int("max_attempts", cfg.MaxAttempts),
		zap.Uint32("breaker_failure_threshold", cfg.Breaker.FailureThreshold))
	return c, nil
}
