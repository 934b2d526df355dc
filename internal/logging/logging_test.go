package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"kotoba-quest/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		cfg   config.LoggingConfig
		level zapcore.Level
	}{
		{config.LoggingConfig{Level: "debug", Format: "console"}, zapcore.DebugLevel},
		{config.LoggingConfig{Level: "warn", Format: "json"}, zapcore.WarnLevel},
		{config.LoggingConfig{Level: "info"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Level+"/"+tt.cfg.Format, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.level))
			assert.False(t, l.Core().Enabled(tt.level-1))
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	assert.NotNil(t, Must(config.LoggingConfig{Level: "loud"}))
}
