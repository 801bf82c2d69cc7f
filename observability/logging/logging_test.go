package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithOptionsWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "vaultd.log")
	logger, closer := SetupWithOptions("vaultd", "test", Options{
		Level:  slog.LevelDebug,
		Output: &buf,
		File:   &FileOptions{Path: path, MaxSizeMB: 1},
	})
	logger.Info("deposit accepted", slog.String("operation", "deposit"), MaskField("authorization", "Bearer abc"))
	require.NoError(t, closer.Close())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "deposit accepted", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "vaultd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "deposit", line["operation"])
	require.Equal(t, RedactedValue, line["authorization"])
	require.Contains(t, line, "timestamp")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "deposit accepted")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskFieldHonoursAllowlist(t *testing.T) {
	require.Equal(t, "deposit", MaskField("operation", "deposit").Value.String())
	require.Equal(t, "abc", MaskField(" Holder ", "abc").Value.String())
	require.Equal(t, RedactedValue, MaskField("secret", "value").Value.String())
	require.Equal(t, "", MaskField("secret", "").Value.String())
}

func TestLoggerMasksSecretKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := SetupWithOptions("vaultd", "", Options{Output: &buf})
	logger.Warn("audit store ready",
		slog.String("dsn", "postgres://vault:hunter2@db/audit"),
		slog.String("Authorization", "Bearer abc"),
		slog.String("token", ""),
		slog.String("driver", "postgres"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, RedactedValue, line["dsn"])
	require.Equal(t, RedactedValue, line["Authorization"])
	require.Equal(t, "", line["token"])
	require.Equal(t, "postgres", line["driver"])
	require.NotContains(t, buf.String(), "hunter2")
}
