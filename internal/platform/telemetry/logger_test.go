package telemetry_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/mass-workshop/mass/internal/platform/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("info", "json", &buf)

	logger.Info("test message", "key", "value")

	var entry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err)

	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "mass", entry["service"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("debug", "TEXT", &buf)

	logger.Debug("permission denied", "permission", "users.manage")

	assert.Contains(t, buf.String(), `msg="permission denied"`)
	assert.Contains(t, buf.String(), "permission=users.manage")
	assert.Contains(t, buf.String(), "service=mass")
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		logged  []string
		dropped []string
	}{
		{"warn", []string{"warn", "error"}, []string{"info", "debug"}},
		{" Error ", []string{"error"}, []string{"warn"}},
		{"bogus", []string{"info"}, []string{"debug"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			for _, msg := range tt.logged {
				var buf bytes.Buffer
				logAt(telemetry.NewLogger(tt.level, "json", &buf), msg)
				assert.NotEmpty(t, buf.String(), msg)
			}
			for _, msg := range tt.dropped {
				var buf bytes.Buffer
				logAt(telemetry.NewLogger(tt.level, "json", &buf), msg)
				assert.Empty(t, buf.String(), msg)
			}
		})
	}
}

func logAt(l interface {
	Debug(string, ...any)
	Info(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
}, level string) {
	switch level {
	case "debug":
		l.Debug(level)
	case "info":
		l.Info(level)
	case "warn":
		l.Warn(level)
	case "error":
		l.Error(level)
	}
}
