package users

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const DefaultTopic = "user-events"

type Config struct {
	// Topic receives user.created, user.updated and user.deleted events.
	Topic string `mapstructure:"topic"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("users"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load users config: %w", err)
		}
	}
	cfg.Topic = lo.CoalesceOrEmpty(cfg.Topic, DefaultTopic)
	return cfg, nil
}
