package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewViper_ReadsFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
outbox:
  batch-size: 25
  poll-interval: 2s
kafka:
  brokers: kafka:9092
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	v, err := newViper(FilePath(configFile), zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, 25, v.GetInt("outbox.batch-size"))
	assert.Equal(t, "2s", v.GetString("outbox.poll-interval"))
	assert.Equal(t, "kafka:9092", v.GetString("kafka.brokers"))
}

func TestNewViper_EnvOverride(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("outbox:\n  max-retries: 3\n"), 0o644))
	t.Setenv("OUTBOX_MAX_RETRIES", "7")

	v, err := newViper(FilePath(configFile), zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, 7, v.GetInt("outbox.max-retries"))
}

func TestNewViper_FileNotFound(t *testing.T) {
	v, err := newViper(FilePath("/nonexistent/config.yaml"), zap.NewNop())

	require.Error(t, err)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "/nonexistent/config.yaml")
}

func TestNewViper_NoFile(t *testing.T) {
	v, err := newViper("", zap.NewNop())

	require.NoError(t, err)
	assert.Empty(t, v.ConfigFileUsed())
}

func TestResolveConfigPath(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "/etc/app.yaml")
		cfg := &viperConfig{noConfigFile: true}
		assert.Equal(t, FilePath(""), resolveConfigPath(cfg))
	})

	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "/etc/app.yaml")
		cfg := &viperConfig{}
		WithConfigPath("/tmp/custom.yaml")(cfg)
		assert.Equal(t, FilePath("/tmp/custom.yaml"), resolveConfigPath(cfg))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", "/etc/app.yaml")
		assert.Equal(t, FilePath("/etc/app.yaml"), resolveConfigPath(&viperConfig{}))
	})
}
