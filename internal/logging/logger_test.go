package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     Environment
		level   string
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{name: "production info", env: EnvironmentProduction, level: "info", enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel},
		{name: "development debug", env: EnvironmentDevelopment, level: "debug", enabled: zapcore.DebugLevel, muted: zapcore.DebugLevel - 1},
		{name: "local warn upper case", env: EnvironmentLocal, level: "WARN", enabled: zapcore.WarnLevel, muted: zapcore.InfoLevel},
		{name: "unknown env falls back to production", env: "uat", level: "error", enabled: zapcore.ErrorLevel, muted: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.env, tt.level)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.muted))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(EnvironmentProduction, "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
