package database

import (
	"testing"

	"fieldops_backend/config"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestGormLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		debug bool
		want  logger.LogLevel
	}{
		{name: "development default", env: "development", level: "info", want: logger.Info},
		{name: "production default", env: "production", level: "info", want: logger.Warn},
		{name: "production silent", env: "production", level: "silent", want: logger.Silent},
		{name: "development errors only", env: "development", level: "error", want: logger.Error},
		{name: "debug level", env: "production", level: "debug", want: logger.Info},
		{name: "debug mode wins", env: "production", level: "silent", debug: true, want: logger.Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				App:     config.AppConfigStruct{Env: tt.env, Debug: tt.debug},
				Logging: config.LoggingConfig{Level: tt.level},
			}
			assert.Equal(t, tt.want, GormLogLevel(cfg))
		})
	}
}
