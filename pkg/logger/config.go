package logger

// Config 日志配置，字段标签与配置文件 log.* 对应
type Config struct {
	Level  string `mapstructure:"level"`  // debug/info/warn/error，默认 info
	Format Format `mapstructure:"format"` // json/console，默认 json

	Console bool          `mapstructure:"console"` // 输出到 stdout
	File    string        `mapstructure:"file"`    // 追加写入的文件
	Rotate  *RotateConfig `mapstructure:"rotate"`  // 轮转输出（lumberjack）

	Sampling *SamplingConfig `mapstructure:"sampling"`

	EnableCaller     bool `mapstructure:"caller"`
	EnableStacktrace bool `mapstructure:"stacktrace"` // Error 及以上
}

// RotateConfig 文件轮转配置
type RotateConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`    // MB，默认 100
	MaxAge     int    `mapstructure:"max_age"`     // 天，默认 30
	MaxBackups int    `mapstructure:"max_backups"` // 默认 10
	Compress   bool   `mapstructure:"compress"`
}

// SamplingConfig 采样配置：每秒前 Initial 条全记，之后每 Thereafter 条记 1 条
type SamplingConfig struct {
	Initial    int `mapstructure:"initial"`
	Thereafter int `mapstructure:"thereafter"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:            "info",
		Format:           JSONFormat,
		Console:          true,
		EnableStacktrace: true,
	}
}

func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	if !c.Console && c.File == "" && c.Rotate == nil {
		c.Console = true
	}
	if r := c.Rotate; r != nil {
		if r.MaxSize == 0 {
			r.MaxSize = 100
		}
		if r.MaxAge == 0 {
			r.MaxAge = 30
		}
		if r.MaxBackups == 0 {
			r.MaxBackups = 10
		}
	}
	if s := c.Sampling; s != nil {
		if s.Initial == 0 {
			s.Initial = 100
		}
		if s.Thereafter == 0 {
			s.Thereafter = 100
		}
	}
}

// Option 配置选项函数
type Option func(*Config)

// WithLevel 设置日志级别
func WithLevel(level Level) Option {
	return func(c *Config) {
		c.Level = level.String()
	}
}

// WithFormat 设置日志格式
func WithFormat(format Format) Option {
	return func(c *Config) {
		c.Format = format
	}
}

// WithFileOutput 设置文件输出
func WithFileOutput(filename string) Option {
	return func(c *Config) {
		c.File = filename
	}
}

// WithRotateOutput 设置轮转输出
func WithRotateOutput(rc *RotateConfig) Option {
	return func(c *Config) {
		c.Rotate = rc
	}
}

// WithCaller 设置是否记录调用位置
func WithCaller(enable bool) Option {
	return func(c *Config) {
		c.EnableCaller = enable
	}
}
