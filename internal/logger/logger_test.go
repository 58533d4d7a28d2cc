package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"codeberg.org/mutker/bluez-monitor/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want logger.LogLevel
	}{
		{"trace", logger.TraceLevel},
		{"debug", logger.DebugLevel},
		{"", logger.InfoLevel},
		{"INFO", logger.InfoLevel},
		{"warn", logger.WarnLevel},
		{"warning", logger.WarnLevel},
		{"error", logger.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logger.ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := logger.ParseLevel("loud")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel, true)
	t.Cleanup(func() { logger.SetLogLevel(logger.InfoLevel) })

	log := logger.New("dispatcher")
	log.Info().Str("sink", "loki").Msg("Wrote device")
	log.ErrorWithCode(errors.New().New(errors.ErrDelivery)).Msg("Push failed")
	log.Trace().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "Wrote device")
	assert.Contains(t, out, "component=dispatcher")
	assert.Contains(t, out, "sink=loki")
	assert.Contains(t, out, "error_code=delivery_failed")
	assert.NotContains(t, out, "hidden")
}
