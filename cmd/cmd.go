package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/sensor-ledger/internal/pkg/cache"
	"github.com/anicoll/sensor-ledger/internal/pkg/config"
	"github.com/anicoll/sensor-ledger/internal/pkg/contxt"
	"github.com/anicoll/sensor-ledger/internal/pkg/database"
	"github.com/anicoll/sensor-ledger/internal/pkg/database/migration"
	"github.com/anicoll/sensor-ledger/internal/pkg/fetcher"
	"github.com/anicoll/sensor-ledger/internal/pkg/ledger"
	"github.com/anicoll/sensor-ledger/internal/pkg/mqtt"
	"github.com/anicoll/sensor-ledger/internal/pkg/poller"
	"github.com/anicoll/sensor-ledger/internal/pkg/publisher"
	"github.com/anicoll/sensor-ledger/internal/pkg/reconcile"
	"github.com/anicoll/sensor-ledger/internal/pkg/server"
	"github.com/anicoll/sensor-ledger/pkg/sockets"
)

func LedgerCommand(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	if ctx.IsSet("simulate") {
		cfg.LedgerCfg.Simulate = ctx.Bool("simulate")
	}
	if ctx.IsSet("http-addr") {
		cfg.HttpCfg.Addr = ctx.String("http-addr")
	}

	if err := run(ctx.Context, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	if cfg.LedgerCfg.Simulate {
		mem := ledger.NewMemory()
		go mem.Simulate(ctx, cfg.LedgerCfg.SimSensorID, cfg.PollCfg.Interval)
		logger.Warn("running against a simulated ledger", zap.String("sensor_id", cfg.LedgerCfg.SimSensorID))
		return serve(ctx, cfg, mem)
	}

	client, err := ledger.New(&cfg.LedgerCfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return serve(ctx, cfg, client)
}

func newLogger(level string) (*zap.Logger, error) {
	var err error
	logCfg := zap.NewProductionConfig()

	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// serve runs the poller, the HTTP facade and the optional sinks until ctx is done.
func serve(ctx context.Context, cfg *config.Config, l Ledger) error {
	logger := zap.L()
	eg, ctx := errgroup.WithContext(ctx)

	registry := publisher.NewRegistry()
	hub := sockets.New(
		sockets.WithPingIntervalSec(30),
		sockets.OnError(func(err error) {
			logger.Debug("websocket error", zap.Error(err))
		}),
	)
	defer hub.Close()
	if err := registry.RegisterPublisher("websocket", server.NewSnapshotStream(hub)); err != nil {
		return err
	}

	db, err := setupArchive(ctx, &cfg.DatabaseCfg, registry)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	if cfg.RedisCfg.Addr != "" {
		rdb, err := cache.NewRedisClient(&cfg.RedisCfg)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		if err := registry.RegisterPublisher("redis", cache.NewStore(rdb, cfg.RedisCfg.Key, cfg.RedisCfg.TTL)); err != nil {
			return err
		}
	}

	if cfg.MqttCfg.Host != "" {
		mqttSvc := mqtt.New(mqtt.NewClient(&cfg.MqttCfg, "sensor-ledger"), cfg.MqttCfg.TopicPrefix)
		if err := mqttSvc.Connect(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer mqttSvc.Disconnect()
		if err := registry.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	ctrl := poller.New(
		fetcher.New(l, cfg.PollCfg.RecordLimit),
		reconcile.New(l, reconcile.Options{
			FromBlock:  cfg.LedgerCfg.FromBlock,
			ReorgDepth: cfg.LedgerCfg.ReorgDepth,
			FullRescan: cfg.LedgerCfg.FullRescan,
			Location:   cfg.Location(),
		}),
		poller.WithInterval(cfg.PollCfg.Interval),
		poller.WithCycleTimeout(cfg.PollCfg.CycleTimeout),
		poller.WithListener(registry),
	)

	eg.Go(func() error {
		return ctrl.Run(ctx)
	})
	if db != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, db, cfg.DatabaseCfg.CleanupSchedule)
		})
	}

	facade := server.New(ctrl, nil, hub)
	if db != nil {
		facade = server.New(ctrl, db, hub)
	}
	srv := &http.Server{
		Handler:      facade.Handler(cfg.HttpCfg.JwtSecret),
		Addr:         cfg.HttpCfg.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	eg.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HttpCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("context done")
		ctrl.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func setupArchive(ctx context.Context, cfg *config.DatabaseConfig, registry *publisher.Registry) (*database.Database, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	if cfg.MigrationsFolder != "" {
		if err := migration.Migrate(cfg.URL, cfg.MigrationsFolder); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	pool, err := database.Connect(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	db := database.NewDatabase(pool, cfg.RetentionDays)
	if err := registry.RegisterPublisher("postgres", db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const cleanupTimeout = time.Minute

// cronDbCleanup runs retention cleanup once at start and then on schedule until ctx is done.
func cronDbCleanup(ctx context.Context, db *database.Database, schedule string) error {
	if err := db.Cleanup(contxt.NewContext(cleanupTimeout)); err != nil {
		zap.L().Error("error cleaning up archive", zap.Error(err))
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := db.Cleanup(contxt.NewContext(cleanupTimeout)); err != nil {
			zap.L().Error("error cleaning up archive", zap.Error(err))
			return
		}
	}); err != nil {
		return fmt.Errorf("cron: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
