package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const envConfigFile = "CONFIG_FILE"

type viperConfig struct {
	configPath   *string
	noConfigFile bool
}

// ViperOption configures the viper module.
type ViperOption func(*viperConfig)

// WithConfigPath loads configuration from path instead of CONFIG_FILE.
func WithConfigPath(path string) ViperOption {
	return func(cfg *viperConfig) {
		cfg.configPath = &path
	}
}

// WithoutConfigFile provides an empty viper backed only by environment variables.
func WithoutConfigFile() ViperOption {
	return func(cfg *viperConfig) {
		cfg.noConfigFile = true
	}
}

// FilePath is the resolved configuration file. Empty means none.
type FilePath string

// NewViperModule provides *viper.Viper. Keys can be overridden from the
// environment: "outbox.poll-interval" is read from OUTBOX_POLL_INTERVAL.
func NewViperModule(opts ...ViperOption) fx.Option {
	cfg := &viperConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return fx.Module("viper",
		fx.Supply(resolveConfigPath(cfg)),
		fx.Provide(newViper),
		fx.Invoke(func(logger *zap.Logger, v *viper.Viper) {
			logger.Info("configuration loaded",
				zap.String("configFile", v.ConfigFileUsed()),
				zap.Strings("keys", v.AllKeys()),
			)
		}),
	)
}

func resolveConfigPath(cfg *viperConfig) FilePath {
	switch {
	case cfg.noConfigFile:
		return ""
	case cfg.configPath != nil:
		return FilePath(*cfg.configPath)
	default:
		return FilePath(os.Getenv(envConfigFile))
	}
}

func newViper(configFile FilePath, logger *zap.Logger) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if configFile == "" {
		logger.Info("no config file specified, using environment only")
		return v, nil
	}

	v.SetConfigFile(string(configFile))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file [%s]: %w", configFile, err)
	}
	return v, nil
}
