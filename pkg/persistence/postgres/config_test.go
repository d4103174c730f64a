package postgres

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		v := viper.New()
		v.Set("postgres.host", "db")
		v.Set("postgres.database", "tasks")

		cfg, err := newConfig(v)

		require.NoError(t, err)
		assert.Equal(t, 5432, cfg.Port)
		assert.Equal(t, "disable", cfg.SSLMode)
		assert.Equal(t, int32(20), cfg.MaxConns)
		assert.Equal(t, int32(2), cfg.MinConns)
		assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
		require.NotNil(t, cfg.MigrateOnStart)
		assert.True(t, *cfg.MigrateOnStart)
	})

	t.Run("missing section", func(t *testing.T) {
		_, err := newConfig(viper.New())
		require.Error(t, err)
	})

	t.Run("missing host", func(t *testing.T) {
		v := viper.New()
		v.Set("postgres.database", "tasks")

		_, err := newConfig(v)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "host and database are required")
	})

	t.Run("connection string skips host validation", func(t *testing.T) {
		v := viper.New()
		v.Set("postgres.connection-string", "postgres://u:p@localhost/db")

		cfg, err := newConfig(v)

		require.NoError(t, err)
		assert.Equal(t, "postgres://u:p@localhost/db", buildConnString(cfg))
	})

	t.Run("min exceeds max", func(t *testing.T) {
		v := viper.New()
		v.Set("postgres.host", "db")
		v.Set("postgres.database", "tasks")
		v.Set("postgres.max-conns", 2)
		v.Set("postgres.min-conns", 5)

		_, err := newConfig(v)

		require.Error(t, err)
	})
}

func TestBuildConnString(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, Username: "app", Password: "p@ss", Database: "users", SSLMode: "require"}

	assert.Equal(t, "postgres://app:p%40ss@db:5433/users?sslmode=require", buildConnString(cfg))
}
