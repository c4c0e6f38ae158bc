package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shopbot/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		conf    config.App
		wantErr bool
	}{
		{name: "production info", conf: config.App{LogLevel: "info", Mode: config.AppModeProduction}},
		{name: "develop debug", conf: config.App{LogLevel: "debug", Mode: config.AppModeDevelop}},
		{name: "bad level", conf: config.App{LogLevel: "loud", Mode: config.AppModeProduction}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log, err := NewLogger(test.conf)
			if test.wantErr {
				assert.Error(t, err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	log, err := NewLogger(config.App{LogLevel: "warn", Mode: config.AppModeProduction})
	require.NoError(t, err)

	assert.Nil(t, log.Check(zap.InfoLevel, "skipped"))
	assert.NotNil(t, log.Check(zap.ErrorLevel, "kept"))
}
