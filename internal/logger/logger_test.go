package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumerag/config"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("shown", "slug", "resume")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "slug=resume")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug("rate limit check", "client", "1.2.3.4")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "rate limit check", rec["msg"])
	assert.Equal(t, "1.2.3.4", rec["client"])
	assert.Equal(t, "DEBUG", rec["level"])
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, nil)
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
