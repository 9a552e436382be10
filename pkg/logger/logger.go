package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)

	// 带 Context 的方法，自动附加 OpenTelemetry 的 trace_id / span_id
	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	Named(name string) Logger
	Sync() error
	SetLevel(level Level)
	Level() Level

	// Zap 返回底层 *zap.Logger，供需要原生 logger 的第三方库使用
	Zap() *zap.Logger
}

type logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

// New 创建 Logger
func New(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.setDefaults()

	lvl, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl.toZapLevel())

	writers, err := buildWriters(config)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(buildEncoder(config.Format), zapcore.NewMultiWriteSyncer(writers...), level)
	if config.Sampling != nil {
		core = zapcore.NewSamplerWithOptions(core, time.Second, config.Sampling.Initial, config.Sampling.Thereafter)
	}

	opts := []zap.Option{}
	if config.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if config.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return &logger{zap: zap.New(core, opts...), level: level}, nil
}

// NewWithOptions 使用 Options 模式创建 Logger
func NewWithOptions(opts ...Option) (Logger, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	return New(config)
}

// NewDevelopment 开发环境 Logger
func NewDevelopment() (Logger, error) {
	return NewWithOptions(
		WithLevel(DebugLevel),
		WithFormat(ConsoleFormat),
		WithCaller(true),
	)
}

// NewNop 丢弃所有输出，测试用
func NewNop() Logger {
	return &logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
}

// FromZap 包装已有的 *zap.Logger（如 zaptest 创建的 logger）
func FromZap(z *zap.Logger) Logger {
	return &logger{zap: z, level: zap.NewAtomicLevelAt(z.Level())}
}

func buildEncoder(format Format) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == ConsoleFormat {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func buildWriters(config *Config) ([]zapcore.WriteSyncer, error) {
	var writers []zapcore.WriteSyncer

	if config.Console {
		writers = append(writers, zapcore.AddSync(os.Stdout))
	}

	if config.File != "" {
		w, _, err := zap.Open(config.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.File, err)
		}
		writers = append(writers, w)
	}

	if r := config.Rotate; r != nil && r.Filename != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   r.Filename,
			MaxSize:    r.MaxSize,
			MaxAge:     r.MaxAge,
			MaxBackups: r.MaxBackups,
			LocalTime:  true,
			Compress:   r.Compress,
		}))
	}

	if len(writers) == 0 {
		return nil, fmt.Errorf("no output configured")
	}
	return writers, nil
}

func (l *logger) Debug(msg string, fields ...zap.Field) { l.zap.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)  { l.zap.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)  { l.zap.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field) { l.zap.Error(msg, fields...) }

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, contextFields(ctx, fields)...)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, contextFields(ctx, fields)...)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, contextFields(ctx, fields)...)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, contextFields(ctx, fields)...)
}

// contextFields 从 ctx 中的 span 提取 trace_id / span_id
func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return fields
	}
	out := make([]zap.Field, 0, len(fields)+2)
	out = append(out,
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
	return append(out, fields...)
}

func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{zap: l.zap.With(fields...), level: l.level}
}

func (l *logger) Named(name string) Logger {
	return &logger{zap: l.zap.Named(name), level: l.level}
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}

// SetLevel 动态调整级别，子 Logger 共享同一个 AtomicLevel
func (l *logger) SetLevel(level Level) {
	l.level.SetLevel(level.toZapLevel())
}

func (l *logger) Level() Level {
	return Level(l.level.Level())
}

func (l *logger) Zap() *zap.Logger {
	return l.zap
}
