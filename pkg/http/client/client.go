package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Pool sizes assume MaxConnLifetime rotates connections across pods.
const (
	DefaultTimeout             = 5 * time.Second
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultMaxConnLifetime     = 60 * time.Second
	MaxRetriesCap              = 5
)

// Config describes one downstream service under clients.<name>:
//
//	clients:
//	  users:
//	    base-url: http://users-service:8081
//	    timeout: 5s
//	    max-idle-conns-per-host: 20
//	    idle-conn-timeout: 90s
//	    max-conn-lifetime: 60s
//
// Omitted durations use the defaults. Zero disables the setting.
type Config struct {
	BaseURL             string         `mapstructure:"base-url"`
	Timeout             *time.Duration `mapstructure:"timeout"`
	MaxIdleConnsPerHost *int           `mapstructure:"max-idle-conns-per-host"`
	IdleConnTimeout     *time.Duration `mapstructure:"idle-conn-timeout"`
	MaxConnLifetime     *time.Duration `mapstructure:"max-conn-lifetime"`
}

// New builds a client that retries dead pooled connections and propagates
// the trace context of outgoing requests.
func New(cfg Config, tp trace.TracerProvider) *http.Client {
	cfg.applyDefaults()
	dialer := &net.Dialer{Timeout: 5 * time.Second}

	maxConnLifetime := *cfg.MaxConnLifetime
	maxIdle := *cfg.MaxIdleConnsPerHost

	var dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	if maxConnLifetime > 0 {
		dialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &timedConn{Conn: conn, createdAt: time.Now(), maxLifetime: maxConnLifetime}, nil
		}
	}

	transport := &http.Transport{
		DialContext:         dialContext,
		MaxIdleConnsPerHost: maxIdle,
		IdleConnTimeout:     *cfg.IdleConnTimeout,
	}

	retrying := &retryTransport{
		base:       transport,
		transport:  transport,
		maxRetries: min(maxIdle, MaxRetriesCap),
	}

	return &http.Client{
		Timeout:   *cfg.Timeout,
		Transport: otelhttp.NewTransport(retrying, otelhttp.WithTracerProvider(tp)),
	}
}

// LoadConfig reads clients.<name> from v.
func LoadConfig(v *viper.Viper, name string) (Config, error) {
	var cfg Config
	if err := v.UnmarshalKey("clients."+name, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal client config %q: %w", name, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid client config %q: %w", name, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Timeout = lo.CoalesceOrEmpty(c.Timeout, lo.ToPtr(DefaultTimeout))
	c.MaxIdleConnsPerHost = lo.CoalesceOrEmpty(c.MaxIdleConnsPerHost, lo.ToPtr(DefaultMaxIdleConnsPerHost))
	c.IdleConnTimeout = lo.CoalesceOrEmpty(c.IdleConnTimeout, lo.ToPtr(DefaultIdleConnTimeout))
	c.MaxConnLifetime = lo.CoalesceOrEmpty(c.MaxConnLifetime, lo.ToPtr(DefaultMaxConnLifetime))
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	return nil
}
