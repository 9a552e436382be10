package orm

import (
	"time"

	"github.com/tokmz/pushgate/pkg/errors"
)

// DBType 数据库类型
type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
	SQLite     DBType = "sqlite"
	SQLServer  DBType = "sqlserver"
)

var (
	ErrInvalidConfig  = errors.New(5001, "orm invalid config")
	ErrConnectFailed  = errors.New(5002, "orm connect failed")
	ErrResolverFailed = errors.New(5003, "orm read-write split setup failed")
	ErrPluginFailed   = errors.New(5004, "orm plugin register failed")
)

// Config 数据库配置
type Config struct {
	Type DBType `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	PrepareStmt bool `mapstructure:"prepare_stmt"`

	// 日志级别: silent, error, warn, info
	LogLevel      string        `mapstructure:"log_level"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	// 为 query/row/raw/create 创建 span
	Tracing  bool `mapstructure:"tracing"`
	SQLTrace bool `mapstructure:"sql_trace"` // span 中记录完整 SQL

	ReadWriteSplit *ReadWriteSplitConfig `mapstructure:"read_write_split"`
}

// ReadWriteSplitConfig 读写分离配置
type ReadWriteSplitConfig struct {
	Replicas []string `mapstructure:"replicas"` // 从库 DSN
	Policy   string   `mapstructure:"policy"`   // random, round_robin
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Type:            SQLite,
		DSN:             "file:pushgate.db?cache=shared",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PrepareStmt:     true,
		LogLevel:        "warn",
		SlowThreshold:   200 * time.Millisecond,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrInvalidConfig.WithMessage("dsn is required")
	}
	switch c.Type {
	case MySQL, PostgreSQL, SQLite, SQLServer:
	default:
		return ErrInvalidConfig.WithMessage("unsupported database type: " + string(c.Type))
	}
	if c.ReadWriteSplit != nil && len(c.ReadWriteSplit.Replicas) == 0 {
		return ErrInvalidConfig.WithMessage("read-write split enabled but no replicas provided")
	}
	return nil
}
