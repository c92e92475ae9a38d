package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 封装 zap.Logger
type Logger struct {
	*zap.Logger
	config *Config
}

// New 按配置创建 logger
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger configuration: %w", err)
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.NewMultiWriteSyncer(writers(cfg)...), level)

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &Logger{
		Logger: zap.New(core, opts...),
		config: cfg,
	}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), config: DefaultConfig()}
}

func newEncoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == FormatJSON {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func writers(cfg *Config) []zapcore.WriteSyncer {
	switch cfg.Output {
	case OutputFile:
		return []zapcore.WriteSyncer{fileWriter(&cfg.File)}
	case OutputBoth:
		return []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout), fileWriter(&cfg.File)}
	case OutputStderr:
		// cmd/discover 的 stdout 留给 JSON 结果
		return []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	default:
		return []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	}
}

// fileWriter 使用 lumberjack 按大小切割日志
func fileWriter(cfg *FileConfig) zapcore.WriteSyncer {
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	})
}

// With creates a child logger with additional fields
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		config: l.config,
	}
}

// Named creates a named logger. A nil receiver yields a no-op logger.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return NewNop()
	}
	return &Logger{
		Logger: l.Logger.Named(name),
		config: l.config,
	}
}

// Config returns the logger configuration
func (l *Logger) Config() *Config {
	return l.config
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// SetGlobal 设置全局 logger, FromContext 找不到 logger 时使用
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// L returns the global logger, a no-op logger until SetGlobal is called
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return NewNop()
	}
	return globalLogger
}
