package inbox

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type Config struct {
	// LegacyFallback lets handlers fall back to scanning payloads that fail
	// structured decoding. When disabled such payloads are permanent failures.
	LegacyFallback *bool `mapstructure:"legacy-fallback"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("inbox"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load inbox config: %w", err)
		}
	}
	if cfg.LegacyFallback == nil {
		cfg.LegacyFallback = lo.ToPtr(true)
	}
	return cfg, nil
}

func (c Config) LegacyFallbackEnabled() bool {
	return lo.FromPtrOr(c.LegacyFallback, true)
}
