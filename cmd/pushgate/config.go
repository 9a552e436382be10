package main

import (
	"strings"
	"time"

	"github.com/tokmz/pushgate"
	"github.com/tokmz/pushgate/pkg/cache"
	"github.com/tokmz/pushgate/pkg/config"
	"github.com/tokmz/pushgate/pkg/gateway"
	"github.com/tokmz/pushgate/pkg/logger"
	"github.com/tokmz/pushgate/pkg/orm"
	"github.com/tokmz/pushgate/pkg/relay"
	"github.com/tokmz/pushgate/pkg/tracing"
)

// appConfig 配置文件的完整结构
type appConfig struct {
	Server    pushgate.Config `mapstructure:"server"`
	Gateway   gatewayConfig   `mapstructure:"gateway"`
	Directory directoryConfig `mapstructure:"directory"`
	Log       logger.Config   `mapstructure:"log"`
	Database  orm.Config      `mapstructure:"database"`
	Cache     cache.Config    `mapstructure:"cache"`
	Tracing   tracing.Config  `mapstructure:"tracing"`
	Relay     relay.Config    `mapstructure:"relay"`
}

type gatewayConfig struct {
	gateway.Config         `mapstructure:",squash"`
	pushgate.GatewayRoutes `mapstructure:",squash"`
}

type directoryConfig struct {
	AutoMigrate bool          `mapstructure:"auto_migrate"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"` // token 解析结果的缓存时间，0 表示不缓存
}

func defaultAppConfig() *appConfig {
	return &appConfig{
		Server: *pushgate.DefaultConfig(),
		Gateway: gatewayConfig{
			Config: *gateway.DefaultConfig(),
			GatewayRoutes: pushgate.GatewayRoutes{
				Path:      "/gateway",
				RateLimit: pushgate.DefaultRateLimitConfig(),
			},
		},
		Directory: directoryConfig{AutoMigrate: true, TokenTTL: time.Minute},
		Log:       *logger.DefaultConfig(),
		Database:  *orm.DefaultConfig(),
		Cache:     *cache.DefaultConfig(),
		Tracing:   *tracing.DefaultConfig(),
		Relay:     *relay.DefaultConfig(),
	}
}

// envDefaults 把常用键注册为 viper 默认值，PUSHGATE_* 环境变量在配置文件缺省这些键时也能生效
// 取值与 defaultAppConfig 一致
func envDefaults(app *appConfig) map[string]any {
	return map[string]any{
		"server.addr":                app.Server.Server.Addr,
		"server.mode":                app.Server.Mode,
		"log.level":                  app.Log.Level,
		"log.format":                 string(app.Log.Format),
		"gateway.path":               app.Gateway.Path,
		"gateway.admin_token":        app.Gateway.AdminToken,
		"gateway.heartbeat_interval": app.Gateway.HeartbeatInterval,
		"gateway.max_connections":    app.Gateway.MaxConnections,
		"database.type":              string(app.Database.Type),
		"database.dsn":               app.Database.DSN,
		"cache.driver":               string(app.Cache.Driver),
		"tracing.enabled":            app.Tracing.Enabled,
		"tracing.exporter":           app.Tracing.Exporter,
		"tracing.endpoint":           app.Tracing.Endpoint,
		"relay.driver":               string(app.Relay.Driver),
	}
}

// loadConfig 读取配置文件与环境变量，onChange 在 StartWatch 之后的文件变更时调用
func loadConfig(path string, onChange func(*config.Config)) (*config.Config, *appConfig, error) {
	app := defaultAppConfig()
	opts := []config.Option{
		config.WithDefaults(envDefaults(app)),
		config.WithOptional(true),
		config.WithEnvPrefix("PUSHGATE"),
		config.WithEnvKeyReplacer(strings.NewReplacer(".", "_")),
	}
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	} else {
		opts = append(opts,
			config.WithConfigName("pushgate"),
			config.WithConfigType("yaml"),
			config.WithConfigPaths(".", "./configs", "/etc/pushgate"),
		)
	}

	opts = append(opts, config.WithOnChange(onChange))
	c := config.New(opts...)
	if err := c.Load(); err != nil {
		return nil, nil, err
	}

	if err := c.Unmarshal(app); err != nil {
		return nil, nil, err
	}
	return c, app, nil
}
