package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAppEnv(t *testing.T, env, name, version string) {
	t.Helper()
	t.Setenv(envAppEnv, env)
	t.Setenv(envAppServiceName, name)
	t.Setenv(envAppServiceVersion, version)
	t.Setenv(envKubernetesHost, "")
}

func TestNewAppConfig_Success(t *testing.T) {
	setAppEnv(t, "test", "tasks-service", "1.0.0")

	cfg, err := newAppConfig()

	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "tasks-service", cfg.ServiceName)
	assert.Equal(t, "1.0.0", cfg.ServiceVersion)
	assert.False(t, cfg.IsKubernetes)
}

func TestNewAppConfig_Kubernetes(t *testing.T) {
	setAppEnv(t, "pro", "users-service", "2.1.0")
	t.Setenv(envKubernetesHost, "10.0.0.1")

	cfg, err := newAppConfig()

	require.NoError(t, err)
	assert.True(t, cfg.IsKubernetes)
}

func TestNewAppConfig_MissingVariables(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		svc     string
		version string
		missing string
	}{
		{name: "app env", svc: "svc", version: "1", missing: envAppEnv},
		{name: "service name", env: "test", version: "1", missing: envAppServiceName},
		{name: "service version", env: "test", svc: "svc", missing: envAppServiceVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAppEnv(t, tt.env, tt.svc, tt.version)

			_, err := newAppConfig()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}
