package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret , broken, =x,tenant=vaults")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "vaults"}, headers)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "a=b")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg := ConfigFromEnv("vaultd", "dev")
	require.Equal(t, "vaultd", cfg.ServiceName)
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.False(t, cfg.Insecure)
	require.Equal(t, map[string]string{"a": "b"}, cfg.Headers)
	require.InDelta(t, 0.25, cfg.SampleRatio, 1e-9)
	require.NotNil(t, cfg.sampler())
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersInstallsPropagator(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "vaultd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
