// Command pushgate 运行实时推送网关
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tokmz/pushgate"
	"github.com/tokmz/pushgate/pkg/cache"
	"github.com/tokmz/pushgate/pkg/config"
	"github.com/tokmz/pushgate/pkg/directory"
	"github.com/tokmz/pushgate/pkg/gateway"
	"github.com/tokmz/pushgate/pkg/logger"
	"github.com/tokmz/pushgate/pkg/metrics"
	"github.com/tokmz/pushgate/pkg/orm"
	"github.com/tokmz/pushgate/pkg/relay"
	"github.com/tokmz/pushgate/pkg/tracing"
)

func main() {
	path := flag.String("config", "", "config file (default: ./pushgate.yaml, ./configs/pushgate.yaml, /etc/pushgate/pushgate.yaml)")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, "pushgate:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	var log logger.Logger
	cfg, app, err := loadConfig(path, func(c *config.Config) {
		// 热更新只调整日志级别，其余配置需重启
		level, err := logger.ParseLevel(c.GetString("log.level"))
		if err != nil {
			log.Warn("ignore invalid log.level on reload", zap.Error(err))
			return
		}
		log.SetLevel(level)
		log.Info("log level reloaded", zap.String("level", level.String()))
	})
	if err != nil {
		return err
	}
	defer cfg.Close()

	log, err = logger.New(&app.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	if f := cfg.ConfigFileUsed(); f != "" {
		log.Info("config loaded", zap.String("file", f))
		cfg.StartWatch()
	}

	ctx := context.Background()
	if _, err := tracing.NewTracerProvider(ctx, &app.Tracing); err != nil {
		return err
	}
	defer tracing.Shutdown(context.Background())

	db, err := orm.New(&app.Database, log)
	if err != nil {
		return err
	}
	defer orm.Close(db)

	store := directory.NewStore(db)
	if app.Directory.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			return err
		}
	}

	var resolver gateway.UserResolver = store
	if app.Directory.TokenTTL > 0 {
		c, err := cache.New(&app.Cache)
		if err != nil {
			return err
		}
		defer c.Close()
		resolver = directory.NewCachedResolver(store, c, app.Directory.TokenTTL)
	}

	reg := metrics.NewRegistry()
	gwCfg := app.Gateway.Config
	gwCfg.Metrics = metrics.New(reg)
	gwCfg.Logger = log
	manager, err := gateway.NewManagerWithConfig(&gwCfg, resolver, store)
	if err != nil {
		return err
	}

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	relayDone := make(chan struct{})
	src, err := relay.NewSource(&app.Relay)
	if err != nil {
		return err
	}
	if src != nil {
		r := relay.New(src, manager,
			relay.WithLogger(log),
			relay.WithRetryInterval(app.Relay.RetryInterval),
		)
		go func() {
			defer close(relayDone)
			_ = r.Run(relayCtx)
		}()
	} else {
		close(relayDone)
	}

	engine := pushgate.New(log,
		pushgate.WithConfig(&app.Server),
		pushgate.WithBeforeShutdown(func(ctx context.Context) {
			stopRelay()
			select {
			case <-relayDone:
			case <-ctx.Done():
				log.Warn("relay did not stop before shutdown deadline")
			}
			if err := manager.Shutdown(ctx); err != nil {
				log.Warn("gateway shutdown incomplete", zap.Error(err))
			}
		}),
	)

	quiet := []string{"/metrics", "/healthz"}
	engine.UseGin(tracing.Middleware(tracing.WithFilter(func(c *gin.Context) bool {
		return !slices.Contains(quiet, c.Request.URL.Path)
	})))
	engine.Use(pushgate.Logger(log, &pushgate.LoggerConfig{ExcludePaths: quiet}))

	routes := app.Gateway.GatewayRoutes
	routes.Manager = manager
	routes.Metrics = metrics.Handler(reg)
	engine.MountGateway(routes)

	log.Info("pushgate starting",
		zap.String("addr", app.Server.Server.Addr),
		zap.String("gateway_path", routes.Path),
		zap.String("relay", string(app.Relay.Driver)),
	)
	return engine.Run()
}
