package logger

// Option 覆盖配置中的单个字段
type Option func(*Config)

// WithLevel sets the log level
func WithLevel(level string) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithFormat sets the log format (json or console)
func WithFormat(format string) Option {
	return func(c *Config) {
		c.Format = format
	}
}

// WithOutput sets the log output (console, stderr, file or both)
func WithOutput(output string) Option {
	return func(c *Config) {
		c.Output = output
	}
}

// Override returns a copy of cfg with opts applied; cfg itself is untouched
func Override(cfg *Config, opts ...Option) *Config {
	out := DefaultConfig()
	if cfg != nil {
		c := *cfg
		out = &c
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}
