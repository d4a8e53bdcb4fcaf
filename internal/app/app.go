package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/heartbeat/internal/config"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver"
	"github.com/MrSnakeDoc/heartbeat/internal/httpserver/deps"
	"github.com/MrSnakeDoc/heartbeat/internal/logger"
	"github.com/MrSnakeDoc/heartbeat/internal/postgres"
	"github.com/MrSnakeDoc/heartbeat/internal/probe"
	"github.com/MrSnakeDoc/heartbeat/internal/redis"
	"github.com/MrSnakeDoc/heartbeat/internal/registry"
	"github.com/MrSnakeDoc/heartbeat/internal/scheduler"
	"github.com/MrSnakeDoc/heartbeat/internal/sources/seed"
	redisstore "github.com/MrSnakeDoc/heartbeat/internal/store/redis"
	"github.com/MrSnakeDoc/heartbeat/internal/utils"
	"github.com/MrSnakeDoc/heartbeat/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	gateway     *postgres.Gateway // nil with the memory store
	registry    *registry.Registry
	redisClient *goredis.Client
	poller      *scheduler.Poller
	gc          *scheduler.GarbageCollector
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	ctx := context.Background()

	// Persistence: PostgreSQL unless the memory store is selected. Fail fast
	// if the database is unavailable.
	var (
		gw     registry.Gateway
		pinger deps.Pinger
		pgGW   *postgres.Gateway
		kind   = "postgres"
	)
	if cfg.UseMemoryStore() {
		loggerClient.Warn("using in-memory store, services are lost on restart")
		mem := registry.NewMemoryGateway(registry.DefaultQueries())
		gw, pinger, kind = mem, mem, config.MemoryDatabase
	} else {
		pool, err := postgres.Connect(ctx, postgres.ConnectOptions{
			DSN:            cfg.DatabaseURL,
			MaxConns:       int32(cfg.DBMaxConns),
			ConnectTimeout: cfg.DBConnectTimeout,
			RetryInterval:  cfg.DBRetryInterval,
			MaxWait:        cfg.DBMaxWait,
			PingTimeout:    cfg.DBPingTimeout,
			WarnThreshold:  cfg.DBWarnThreshold,
		}, loggerClient.Named("postgres"))
		if err != nil {
			loggerClient.Errorf("Failed to connect to PostgreSQL: %v", err)
			os.Exit(1)
		}

		pgGW = postgres.New(pool, loggerClient.Named("postgres"))
		if err := postgres.Bootstrap(ctx, pgGW, loggerClient); err != nil {
			loggerClient.Errorf("Failed to create schema: %v", err)
			pgGW.Close()
			os.Exit(1)
		}
		gw, pinger = pgGW, pgGW
	}

	reg := registry.New(gw, registry.DefaultQueries(), registry.Options{
		Mode:         registry.Mode(cfg.StatusMode),
		BatchSize:    cfg.BatchSize,
		FlushTimeout: cfg.FlushTimeout,
	}, loggerClient.Named("registry"))

	// Register seed services before the first tick
	if cfg.SeedFile != "" {
		entries, err := seed.NewLoader(cfg.SeedFile).Load()
		if err != nil {
			loggerClient.Warn("failed to load seed file",
				logger.String("file", cfg.SeedFile),
				logger.Error(err))
		} else if _, err := seed.Seed(ctx, reg, entries, loggerClient.Named("seed")); err != nil {
			loggerClient.Warn("seeding failed", logger.Error(err))
		}
	}

	// Optional observation cache. Redis being down degrades /service/checks
	// only, so startup continues without it.
	var (
		redisClient *goredis.Client
		checks      *redisstore.Store
		observer    scheduler.Observer
		checkDeps   deps.CheckStore
		gc          *scheduler.GarbageCollector
	)
	if cfg.RedisEnabled() {
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient.Named("redis"))
		if err != nil {
			loggerClient.Warn("redis unavailable, check history disabled", logger.Error(err))
		} else {
			redisClient = client
			checks = redisstore.NewStore(client, cfg.CheckTTL, loggerClient.Named("checks"))
			observer, checkDeps = checks, checks
			gc = scheduler.NewGarbageCollector(reg, checks, loggerClient.Named("gc"), cfg.GCInterval, cfg.CheckTTL)
		}
	} else {
		loggerClient.Info("redis not configured, check history disabled")
	}

	// Create manual poll trigger channel
	pollTrigger := make(chan struct{}, 1)

	poller := scheduler.NewPoller(
		reg,
		probe.NewHTTPProber(cfg.ProbeTimeout),
		loggerClient.Named("poller"),
		cfg.PollInterval,
		scheduler.Options{
			MaxConcurrentProbes:  cfg.MaxConcurrentProbes,
			SkipOverlappingTicks: cfg.SkipOverlappingTicks,
			Observer:             observer,
			ManualTrigger:        pollTrigger,
		},
	)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Registry:     reg,
		Database:     pinger,
		DatabaseKind: kind,
		Checks:       checkDeps,
		Poller:       poller,
		PollTrigger:  pollTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		gateway:     pgGW,
		registry:    reg,
		redisClient: redisClient,
		poller:      poller,
		gc:          gc,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting heartbeat %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	a.logger.Info("poller started",
		logger.Duration("interval", a.cfg.PollInterval),
		logger.Duration("probe_timeout", a.cfg.ProbeTimeout),
		logger.String("status_mode", a.cfg.StatusMode))

	if a.gc != nil {
		if err := a.gc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start garbage collector: %w", err)
		}
		a.logger.Info("garbage collector started",
			logger.Duration("interval", a.cfg.GCInterval))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
		a.logger.Error("http server stopped unexpectedly", logger.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Stop producing status updates, then persist what is still queued.
	a.poller.Stop()
	if a.gc != nil {
		a.gc.Stop()
	}
	if err := a.registry.Flush(shutdownCtx); err != nil {
		a.logger.Error("failed to flush queued status updates",
			logger.Int("remaining", a.registry.QueueLen()),
			logger.Error(err))
	}

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}
	if a.gateway != nil {
		a.gateway.Close()
		a.logger.Info("✅ PostgreSQL pool closed")
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ heartbeat stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
