package tasks

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/simdev/taskhub/pkg/persistence"
	"github.com/spf13/viper"
)

const DefaultTopic = "task-events"

type Config struct {
	// Topic receives task.created, task.updated and task.deleted events.
	Topic string `mapstructure:"topic"`
	// Storage is "postgres" or "mongo".
	Storage string `mapstructure:"storage"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if sub := v.Sub("tasks"); sub != nil {
		if err := sub.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to load tasks config: %w", err)
		}
	}
	cfg.Topic = lo.CoalesceOrEmpty(cfg.Topic, DefaultTopic)
	if _, err := persistence.ParseBackend(cfg.Storage); err != nil {
		return cfg, fmt.Errorf("invalid tasks.storage: %w", err)
	}
	return cfg, nil
}
