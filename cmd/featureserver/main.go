package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/snowflake-featureserver/internal/cache"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/cache/memory"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/cache/redisstore"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/config"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/featureserver"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/observability"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/server"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/core/warehouse"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/logger"
	"github.com/mohammed-shakir/snowflake-featureserver/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	levelFlag := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	layersFlag := flag.String("layers", "", "layer definitions file (overrides LAYERS_FILE)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *levelFlag != "" {
		cfg.LogLevel = strings.TrimSpace(*levelFlag)
	}
	if *layersFlag != "" {
		cfg.LayersFile = strings.TrimSpace(*layersFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "featureserver",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		p.Serve(ctx, appLog)
		metricsHandler = p.Handler()
	} else {
		observability.Init(nil, false)
	}

	layers, err := config.LoadLayers(cfg.LayersFile)
	if err != nil {
		appLog.Error("failed to load layer definitions", "file", cfg.LayersFile, "err", err)
		return 1
	}
	appLog.Info("starting feature server",
		"addr", cfg.Addr,
		"version", Version,
		"services", len(layers),
		"cache", cfg.Cache.Driver,
		"account", cfg.Snowflake.Account)

	wh := warehouse.New(cfg.Snowflake, appLog)
	defer func() { _ = wh.Close() }()

	var exec featureserver.Executor = wh
	store, err := newStore(ctx, cfg.Cache)
	if err != nil {
		appLog.Error("cache setup failed", "driver", cfg.Cache.Driver, "err", err)
		return 1
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		exec = cache.NewExecutor(wh, store, cfg.Cache.TTL, cfg.Cache.OpTimeout, appLog)
	}

	if cfg.Invalidation.Enabled {
		if store == nil {
			appLog.Warn("invalidation enabled without a result cache; consumer not started")
		} else {
			cons := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, store, layers.Tables())
			evLog := zl.With().Str("component", "kafka_consumer").Logger()
			cons.SetEventLogger(&evLog)
			go func() {
				if err := cons.Start(ctx); err != nil {
					appLog.Error("invalidation consumer stopped", "err", err)
				}
			}()
		}
	}

	svc := featureserver.New(layers, wh, exec, appLog)

	// queries are rejected with 503 until the handshake settles
	go func() {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Snowflake.LoginTimeout)
		defer cancel()
		_ = svc.Start(connectCtx)
	}()

	if err := server.Run(ctx, cfg, appLog, server.Handler(appLog, svc, svc, metricsHandler)); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// newStore returns nil when caching is disabled.
func newStore(ctx context.Context, c config.CacheCfg) (cache.Store, error) {
	switch c.Driver {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(c.Size, c.TTL), nil
	case "redis":
		rc, err := redisstore.New(ctx, c.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis %s: %w", c.RedisAddr, err)
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", c.Driver)
	}
}
