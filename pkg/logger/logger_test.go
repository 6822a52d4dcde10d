package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwitt-bot/kwitt/pkg/config"
)

func TestNew_BuildsUsableLogger(t *testing.T) {
	log := New(config.Config{
		Logger: config.LoggerConfig{Level: "debug", Format: "text"},
	})

	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestNew_WithSentryTee(t *testing.T) {
	log := New(config.Config{
		Logger: config.LoggerConfig{Level: "info", Format: "json"},
		Sentry: config.SentryConfig{Enabled: true},
	})

	require.NotNil(t, log)

	// The tee must not break logging even when Sentry was never initialized.
	log.Error("outbound send failed", slog.String("chat", "42"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestMaskingHandler_RedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil)))

	log.Info("connecting",
		slog.String("bot_token", "123:secret-token"),
		slog.String("dsn", "host=db password=hunter2"),
		slog.String("addr", "localhost:5432"),
	)

	out := buf.String()
	assert.NotContains(t, out, "secret-token")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "***")
	assert.Contains(t, out, "localhost:5432")
}
