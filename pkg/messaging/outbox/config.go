package outbox

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BatchSize            int           `mapstructure:"batch-size"`
	PollInterval         time.Duration `mapstructure:"poll-interval"`
	MaxRetries           int           `mapstructure:"max-retries"`
	ProcessingTimeout    time.Duration `mapstructure:"processing-timeout"`   // PROCESSING rows older than this are released by the watchdog
	StaleCheckInterval   time.Duration `mapstructure:"stale-check-interval"` // Watchdog period
	Retention            time.Duration `mapstructure:"retention"`            // How long PUBLISHED rows are kept
	RetentionInterval    time.Duration `mapstructure:"retention-interval"`   // Sweeper period
	ConfirmBatchSize     int           `mapstructure:"confirm-batch-size"`
	ConfirmFlushInterval time.Duration `mapstructure:"confirm-flush-interval"`
}

func defaultConfig() Config {
	return Config{
		BatchSize:            10,
		PollInterval:         5 * time.Second,
		MaxRetries:           3,
		ProcessingTimeout:    2 * time.Minute,
		StaleCheckInterval:   30 * time.Second,
		Retention:            24 * time.Hour,
		RetentionInterval:    24 * time.Hour,
		ConfirmBatchSize:     100,
		ConfirmFlushInterval: 500 * time.Millisecond,
	}
}

func newConfig(v *viper.Viper) (Config, error) {
	cfg := defaultConfig()
	if sub := v.Sub("outbox"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load outbox config: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid outbox config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("batch-size must be positive, got: %d", c.BatchSize)
	case c.PollInterval <= 0:
		return fmt.Errorf("poll-interval must be positive, got: %v", c.PollInterval)
	case c.MaxRetries < 1:
		return fmt.Errorf("max-retries must be at least 1, got: %d", c.MaxRetries)
	case c.ProcessingTimeout <= 0:
		return fmt.Errorf("processing-timeout must be positive, got: %v", c.ProcessingTimeout)
	case c.StaleCheckInterval <= 0:
		return fmt.Errorf("stale-check-interval must be positive, got: %v", c.StaleCheckInterval)
	case c.Retention <= 0:
		return fmt.Errorf("retention must be positive, got: %v", c.Retention)
	case c.RetentionInterval <= 0:
		return fmt.Errorf("retention-interval must be positive, got: %v", c.RetentionInterval)
	case c.ConfirmBatchSize < 1:
		return fmt.Errorf("confirm-batch-size must be positive, got: %d", c.ConfirmBatchSize)
	case c.ConfirmFlushInterval <= 0:
		return fmt.Errorf("confirm-flush-interval must be positive, got: %v", c.ConfirmFlushInterval)
	}
	return nil
}

// checkAgainstProducer rejects a processing timeout that would release rows
// while the producer may still report their delivery.
func (c Config) checkAgainstProducer(messageTimeout time.Duration) error {
	if c.ProcessingTimeout <= messageTimeout {
		return fmt.Errorf("outbox processing-timeout (%v) must exceed kafka producer message-timeout (%v)",
			c.ProcessingTimeout, messageTimeout)
	}
	return nil
}
