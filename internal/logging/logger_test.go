package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
)

func TestLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.RuntimeConfig{LogLevel: "info"})

	logger.Info("loaded", "private_key", "0xdeadbeef", "explorer_api_key", "k", "rpc_url", "http://localhost:8545")

	out := buf.String()
	assert.NotContains(t, out, "0xdeadbeef")
	assert.Contains(t, out, "private_key=[REDACTED]")
	assert.Contains(t, out, "explorer_api_key=[REDACTED]")
	assert.Contains(t, out, "rpc_url=http://localhost:8545")
	assert.NotContains(t, out, "time=")
}

func TestLogger_RuntimeConfigNeverLogsKey(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.RuntimeConfig{LogLevel: "debug"})

	cfg := &config.RuntimeConfig{Signer: config.Signer{PrivateKey: "0x1234secret"}}
	logger.Debug("config", "cfg", cfg)

	assert.NotContains(t, buf.String(), "0x1234secret")
	assert.Contains(t, buf.String(), "signer_configured=true")
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.RuntimeConfig{LogLevel: "warn"})

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
}
