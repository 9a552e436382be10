package tracing

import (
	"time"

	"github.com/tokmz/pushgate/pkg/errors"
)

// 导出器类型
const (
	ExporterOTLP     = "otlp"      // OTLP over HTTP
	ExporterOTLPGRPC = "otlp-grpc" // OTLP over gRPC
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// ErrInvalidConfig 配置错误
var ErrInvalidConfig = errors.New(6001, "tracing invalid config")

// Config 链路追踪配置
type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`

	Exporter string            `mapstructure:"exporter"`
	Endpoint string            `mapstructure:"endpoint"` // 为空时读取 OTEL_EXPORTER_OTLP_ENDPOINT
	Headers  map[string]string `mapstructure:"headers"`
	Insecure bool              `mapstructure:"insecure"`

	// 采样: always, never, ratio, parent_based
	// 设置了 OTEL_TRACES_SAMPLER 时交给 sdk 按环境变量处理
	Sampler      string  `mapstructure:"sampler"`
	SamplingRate float64 `mapstructure:"sampling_rate"`

	ResourceAttributes map[string]string `mapstructure:"resource_attributes"`

	BatchTimeout       time.Duration `mapstructure:"batch_timeout"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size"`
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:            false,
		ServiceName:        "pushgate",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		Exporter:           ExporterStdout,
		Sampler:            "parent_based",
		SamplingRate:       1.0,
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrInvalidConfig.WithMessage("service name is required")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return ErrInvalidConfig.WithMessage("sampling rate must be between 0.0 and 1.0")
	}
	switch c.Exporter {
	case ExporterOTLP, ExporterOTLPGRPC, ExporterStdout, ExporterNoop:
	default:
		return ErrInvalidConfig.WithMessage("invalid exporter type: " + c.Exporter)
	}
	return nil
}
