package existence

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	DefaultTTL                 = 300 * time.Second
	DefaultMaxAttempts         = 3
	DefaultInitialBackoff      = 100 * time.Millisecond
	DefaultCheckTimeout        = 5 * time.Second
	DefaultFailureThreshold    = 5
	DefaultOpenTimeout         = 30 * time.Second
	DefaultHalfOpenMaxRequests = 1
)

// Config is read from the "existence" key:
//
//	existence:
//	  ttl: 300s
//	  fail-open: true
//	  max-attempts: 3
//	  initial-backoff: 100ms
//	  check-timeout: 5s
//	  breaker:
//	    failure-threshold: 5
//	    open-timeout: 30s
//	    half-open-max-requests: 1
type Config struct {
	TTL            time.Duration `mapstructure:"ttl"`
	FailOpen       *bool         `mapstructure:"fail-open"`
	MaxAttempts    int           `mapstructure:"max-attempts"`
	InitialBackoff time.Duration `mapstructure:"initial-backoff"`
	// CheckTimeout bounds one shared remote check, retries included. The check
	// runs detached from the context of whichever caller started it.
	CheckTimeout time.Duration `mapstructure:"check-timeout"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold    uint32        `mapstructure:"failure-threshold"`
	OpenTimeout         time.Duration `mapstructure:"open-timeout"`
	HalfOpenMaxRequests uint32        `mapstructure:"half-open-max-requests"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("existence"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load existence config: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid existence config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.TTL = lo.CoalesceOrEmpty(c.TTL, DefaultTTL)
	c.FailOpen = lo.CoalesceOrEmpty(c.FailOpen, lo.ToPtr(true))
	c.MaxAttempts = lo.CoalesceOrEmpty(c.MaxAttempts, DefaultMaxAttempts)
	c.InitialBackoff = lo.CoalesceOrEmpty(c.InitialBackoff, DefaultInitialBackoff)
	c.CheckTimeout = lo.CoalesceOrEmpty(c.CheckTimeout, DefaultCheckTimeout)
	c.Breaker.FailureThreshold = lo.CoalesceOrEmpty(c.Breaker.FailureThreshold, uint32(DefaultFailureThreshold))
	c.Breaker.OpenTimeout = lo.CoalesceOrEmpty(c.Breaker.OpenTimeout, DefaultOpenTimeout)
	c.Breaker.HalfOpenMaxRequests = lo.CoalesceOrEmpty(c.Breaker.HalfOpenMaxRequests, uint32(DefaultHalfOpenMaxRequests))
}

func (c Config) validate() error {
	var errs []error
	if c.TTL < 0 {
		errs = append(errs, fmt.Errorf("ttl must not be negative, got %v", c.TTL))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max-attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.CheckTimeout < 0 {
		errs = append(errs, fmt.Errorf("check-timeout must not be negative, got %v", c.CheckTimeout))
	}
	if c.Breaker.OpenTimeout < 0 {
		errs = append(errs, fmt.Errorf("breaker.open-timeout must not be negative, got %v", c.Breaker.OpenTimeout))
	}
	return errors.Join(errs...)
}

func (c Config) FailOpenEnabled() bool {
	return lo.FromPtrOr(c.FailOpen, true)
}
