package postgres

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ConnectionString string `mapstructure:"connection-string"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Database         string `mapstructure:"database"`
	SSLMode          string `mapstructure:"ssl-mode"`

	MaxConns        int32         `mapstructure:"max-conns"`
	MinConns        int32         `mapstructure:"min-conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max-conn-idle-time"`
	MaxConnLifetime time.Duration `mapstructure:"max-conn-lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect-timeout"`

	// MigrateOnStart applies registered migrations before the pool is marked ready.
	MigrateOnStart *bool `mapstructure:"migrate-on-start"`
}

func newConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	sub := v.Sub("postgres")
	if sub == nil {
		return cfg, fmt.Errorf("postgres config section is missing")
	}
	if err := sub.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to load postgres config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, validateConfig(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 20
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = 2
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = time.Hour
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MigrateOnStart == nil {
		enabled := true
		cfg.MigrateOnStart = &enabled
	}
}

func validateConfig(cfg Config) error {
	if cfg.ConnectionString != "" {
		return nil
	}
	if cfg.Host == "" || cfg.Database == "" {
		return fmt.Errorf("invalid postgres configuration: host and database are required")
	}
	if cfg.MinConns > cfg.MaxConns {
		return fmt.Errorf("invalid postgres configuration: min-conns (%d) exceeds max-conns (%d)", cfg.MinConns, cfg.MaxConns)
	}
	return nil
}

func buildConnString(cfg Config) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
