package orm

import (
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/tokmz/pushgate/pkg/logger"
)

// New 创建 gorm 实例
// log 为 nil 时 SQL 日志被丢弃
func New(cfg *Config, log logger.Logger) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	db, err := gorm.Open(dialector(cfg.Type, cfg.DSN), &gorm.Config{
		PrepareStmt: cfg.PrepareStmt,
		Logger:      NewGormLogger(log.Named("gorm"), cfg.LogLevel, cfg.SlowThreshold),
	})
	if err != nil {
		return nil, ErrConnectFailed.WithError(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, ErrConnectFailed.WithError(err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if cfg.ReadWriteSplit != nil {
		if err := setupReadWriteSplit(db, cfg); err != nil {
			return nil, ErrResolverFailed.WithError(err)
		}
	}

	if cfg.Tracing {
		if err := db.Use(NewTracingPlugin(WithSQLTrace(cfg.SQLTrace))); err != nil {
			return nil, ErrPluginFailed.WithError(err)
		}
	}

	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialector(t DBType, dsn string) gorm.Dialector {
	switch t {
	case MySQL:
		return mysql.Open(dsn)
	case PostgreSQL:
		return postgres.Open(dsn)
	case SQLServer:
		return sqlserver.Open(dsn)
	default:
		return sqlite.Open(dsn)
	}
}

func setupReadWriteSplit(db *gorm.DB, cfg *Config) error {
	replicas := make([]gorm.Dialector, 0, len(cfg.ReadWriteSplit.Replicas))
	for _, dsn := range cfg.ReadWriteSplit.Replicas {
		replicas = append(replicas, dialector(cfg.Type, dsn))
	}

	var policy dbresolver.Policy = dbresolver.RandomPolicy{}
	if cfg.ReadWriteSplit.Policy == "round_robin" {
		policy = dbresolver.RoundRobinPolicy()
	}

	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   policy,
	}).
		SetMaxIdleConns(cfg.MaxIdleConns).
		SetMaxOpenConns(cfg.MaxOpenConns).
		SetConnMaxLifetime(cfg.ConnMaxLifetime).
		SetConnMaxIdleTime(cfg.ConnMaxIdleTime))
}
