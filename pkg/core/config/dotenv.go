package config

import (
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewDotEnvModule loads a .env file (if present) before anything reads the environment.
// Loading happens while the module graph is built, not on start.
func NewDotEnvModule(paths ...string) fx.Option {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	err := godotenv.Load(paths...)

	return fx.Module("dotenv",
		fx.Invoke(func(logger *zap.Logger) {
			if err != nil {
				logger.Debug("no .env file loaded", zap.Strings("paths", paths))
				return
			}
			logger.Info("loaded .env file", zap.Strings("paths", paths))
		}),
	)
}
