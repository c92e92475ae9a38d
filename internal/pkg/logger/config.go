package logger

import (
	"errors"
	"strings"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"

	OutputConsole = "console"
	OutputStderr  = "stderr"
	OutputFile    = "file"
	OutputBoth    = "both"
)

// Config defines the logger configuration
type Config struct {
	Level            string     `mapstructure:"level"`  // debug, info, warn, error
	Format           string     `mapstructure:"format"` // json, console
	Output           string     `mapstructure:"output"` // console, stderr, file, both
	File             FileConfig `mapstructure:"file"`
	EnableCaller     bool       `mapstructure:"enablecaller"`
	EnableStacktrace bool       `mapstructure:"enablestacktrace"` // stacktrace on error level
}

// FileConfig defines file output configuration
type FileConfig struct {
	Filename   string `mapstructure:"filename"`   // log file path
	MaxSize    int    `mapstructure:"maxsize"`    // max size in MB
	MaxAge     int    `mapstructure:"maxage"`     // max age in days
	MaxBackups int    `mapstructure:"maxbackups"` // max backup files
	Compress   bool   `mapstructure:"compress"`   // compress rotated files
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           "json",
		Output:           "console",
		EnableCaller:     true,
		EnableStacktrace: true,
		File: FileConfig{
			Filename:   "logs/discovery.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
	"dpanic": true, "panic": true, "fatal": true,
}

// Validate validates the logger configuration
func (c *Config) Validate() error {
	if !validLevels[strings.ToLower(c.Level)] {
		return errors.New("invalid log level, must be one of: debug, info, warn, error, dpanic, panic, fatal")
	}

	if c.Format != FormatJSON && c.Format != FormatConsole {
		return errors.New("invalid log format, must be 'json' or 'console'")
	}

	switch c.Output {
	case OutputConsole, OutputStderr, OutputFile, OutputBoth:
	default:
		return errors.New("invalid log output, must be 'console', 'stderr', 'file' or 'both'")
	}

	if c.Output == OutputFile || c.Output == OutputBoth {
		if c.File.Filename == "" {
			return errors.New("log file filename is required when output is 'file' or 'both'")
		}
		if c.File.MaxSize <= 0 {
			return errors.New("log file maxsize must be greater than 0")
		}
		if c.File.MaxAge <= 0 {
			return errors.New("log file maxage must be greater than 0")
		}
		if c.File.MaxBackups < 0 {
			return errors.New("log file maxbackups must be greater than or equal to 0")
		}
	}

	return nil
}
