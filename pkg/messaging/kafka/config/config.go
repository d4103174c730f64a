package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewKafkaConfigModule provides Config read from the "kafka" section.
func NewKafkaConfigModule() fx.Option {
	return fx.Provide(newConfig)
}

func newConfig(v *viper.Viper, logger *zap.Logger) (Config, error) {
	var cfg Config
	sub := v.Sub("kafka")
	if sub == nil {
		return cfg, fmt.Errorf("kafka config section is missing")
	}
	if err := sub.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load kafka config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid kafka config: %w", err)
	}

	logger.Info("loaded kafka config",
		zap.String("brokers", cfg.Brokers),
		zap.Int("consumers", len(cfg.ConsumersConfig.ConsumerConfig)),
	)
	return cfg, nil
}

// Consumer returns the configuration of the named consumer.
func (c Config) Consumer(name string) (ConsumerConfig, error) {
	for _, consumer := range c.ConsumersConfig.ConsumerConfig {
		if consumer.Name == name {
			return consumer, nil
		}
	}
	return ConsumerConfig{}, fmt.Errorf("consumer config not found for: %s", name)
}
