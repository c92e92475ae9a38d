package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lk2023060901/linkedin-discovery/internal/pkg/logger"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"default config", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"invalid port", func(c *Config) { c.Port = 0 }, true},
		{"missing user", func(c *Config) { c.User = "" }, true},
		{"missing db name", func(c *Config) { c.DBName = "" }, true},
		{"invalid SSL mode", func(c *Config) { c.SSLMode = "invalid" }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "debug" }, true},
		{"idle exceeds open", func(c *Config) { c.MaxIdleConns, c.MaxOpenConns = 100, 10 }, true},
		{"unbounded open allows any idle", func(c *Config) { c.MaxIdleConns, c.MaxOpenConns = 100, 0 }, false},
		{"negative lifetime", func(c *Config) { c.ConnMaxLifetime = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreferSimpleProtocol = true

	dsn := cfg.DSN()
	for _, part := range []string{"host=localhost", "port=5432", "user=postgres", "dbname=discovery", "sslmode=disable", "TimeZone=UTC"} {
		assert.Contains(t, dsn, part)
	}
	assert.True(t, strings.HasSuffix(dsn, "prefer_simple_protocol=true"))
}

func TestErrorHelpers(t *testing.T) {
	assert.False(t, IsRecordNotFoundError(nil))
	assert.True(t, IsRecordNotFoundError(gorm.ErrRecordNotFound))
	assert.True(t, IsRecordNotFoundError(errors.Join(errors.New("lookup"), gorm.ErrRecordNotFound)))
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	cfg := DefaultConfig()
	cfg.SlowThreshold = 10 * time.Millisecond
	gl := newGormLogger(log, cfg)

	query := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(context.Background(), time.Now(), query, nil)
	assert.Equal(t, 0, logs.Len(), "fast queries are not logged at warn level")

	gl.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "slow SQL query", logs.All()[0].Message)

	gl.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Equal(t, 1, logs.Len(), "record not found is not an error")

	gl.Trace(context.Background(), time.Now(), query, errors.New("syntax error"))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "database query error", logs.All()[1].Message)

	gl.Trace(context.Background(), time.Now(), query, fmt.Errorf("upsert: %w", context.Canceled))
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "database query abandoned", logs.All()[2].Message)
	assert.Equal(t, zapcore.DebugLevel, logs.All()[2].Level)

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), query, errors.New("ignored"))
	assert.Equal(t, 3, logs.Len())
}
