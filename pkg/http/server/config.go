package server

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Port int `mapstructure:"port"`

	Connection ConnectionConfig `mapstructure:"connection"`
	Timeout    TimeoutConfig    `mapstructure:"timeout"`
}

// ConnectionConfig holds net/http server limits. Exceeding them closes the
// connection without a response.
type ConnectionConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read-header-timeout"`
	ReadTimeout       time.Duration `mapstructure:"read-timeout"`
	WriteTimeout      time.Duration `mapstructure:"write-timeout"` // must exceed the request timeout
	IdleTimeout       time.Duration `mapstructure:"idle-timeout"`
	MaxHeaderBytes    int           `mapstructure:"max-header-bytes"`
}

type TimeoutConfig struct {
	Enabled        *bool         `mapstructure:"enabled"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
}

func newConfig(v *viper.Viper, logger *zap.Logger) (Config, error) {
	cfg := Config{Port: 8080}
	if sub := v.Sub("server"); sub != nil {
		if err := sub.UnmarshalExact(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load server config: %w", err)
		}
	}
	applyDefaults(&cfg)

	logger.Info("loaded server config", zap.Int("port", cfg.Port), zap.Duration("request_timeout", cfg.Timeout.RequestTimeout))
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Timeout.Enabled == nil {
		cfg.Timeout.Enabled = lo.ToPtr(true)
	}
	if *cfg.Timeout.Enabled && cfg.Timeout.RequestTimeout == 0 {
		cfg.Timeout.RequestTimeout = 30 * time.Second
	}

	c := &cfg.Connection
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 40 * time.Second
		if *cfg.Timeout.Enabled {
			c.WriteTimeout = cfg.Timeout.RequestTimeout + 10*time.Second
		}
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = 1 << 20
	}
}
