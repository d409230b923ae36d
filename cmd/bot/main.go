package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"receipts-bot/internal/bot"
	rcache "receipts-bot/internal/cache/redis"
	"receipts-bot/internal/common/config"
	"receipts-bot/internal/common/logger"
	"receipts-bot/internal/domain/branch"
	"receipts-bot/internal/domain/settings"
	"receipts-bot/internal/i18n"
	"receipts-bot/internal/platform/postgres"
	rplatform "receipts-bot/internal/platform/redis"
	"receipts-bot/internal/platform/storage"
	"receipts-bot/internal/platform/telegram"
	pgrepo "receipts-bot/internal/repository/postgres"
	"receipts-bot/internal/service/records"
	"receipts-bot/internal/session"
	"receipts-bot/internal/workers"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("bot stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("receipts-bot", false)
		return err
	}
	logger.Init(cfg.ServiceName, cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Msg("Starting receipts bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.NewClient(ctx, postgres.Options{
		DSN:             cfg.Postgres.DSN,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.AutoMigrate {
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	files, err := storage.NewS3(ctx, storage.Options{
		Bucket:       cfg.S3.Bucket,
		Region:       cfg.S3.Region,
		BaseEndpoint: cfg.S3.BaseEndpoint,
		AccessKey:    cfg.S3.AccessKey,
		SecretKey:    cfg.S3.SecretKey,
		LinkTTL:      cfg.S3.LinkTTL,
	})
	if err != nil {
		return fmt.Errorf("s3: %w", err)
	}

	checks := map[string]func(context.Context) error{
		"postgres": pg.HealthCheck,
	}

	var (
		sessions session.Store = session.NewMemoryStore()
		locker   workers.Locker
		rdb      *rplatform.Client
	)
	if cfg.Session.Store == "redis" || cfg.Workers.UserLock || cfg.Cache.TTL > 0 {
		rdb, err = rplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = rdb.HealthCheck

		if cfg.Session.Store == "redis" {
			sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
		}
		// Multi-consumer deployments only; the poller below is the sole getUpdates consumer.
		if cfg.Workers.UserLock {
			locker = workers.NewRedisLocker(rdb.Redsync())
		}
	}

	db := pg.GetDB()
	var (
		branches branch.Repository   = pgrepo.NewBranchRepository(db)
		st       settings.Repository = pgrepo.NewSettingsRepository(db)
	)
	if rdb != nil && cfg.Cache.TTL > 0 {
		branches = rcache.NewBranchCache(branches, rdb, cfg.Cache.TTL)
		st = rcache.NewSettingsCache(st, rdb, cfg.Cache.TTL)
	}
	store := records.NewStore(
		pgrepo.NewUserRepository(db),
		branches,
		pgrepo.NewReceiptRepository(db),
		st,
		files,
	)

	logger.Info().Str("sessions", cfg.Session.Store).Bool("user_lock", locker != nil).Msg("Session store ready")

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	tg := telegram.NewClient(cfg.Telegram.BotToken, telegram.WithBaseURL(cfg.Telegram.APIBaseURL))
	defer tg.Close()

	engine := bot.NewEngine(store, sessions, tg, catalog)
	router := workers.NewRouter(engine, cfg.Workers.Count, cfg.Workers.QueueSize, locker)
	router.Start(ctx)
	poller := workers.NewPoller(tg, router, cfg.Telegram.PollTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })
	g.Go(func() error { return watchHealth(gctx, checks, time.Minute) })

	err = g.Wait()
	// Poller has stopped; let queued updates finish.
	router.Close()
	logger.Info().Msg("Bot exited")
	return err
}

// watchHealth logs dependency failures until ctx is done.
func watchHealth(ctx context.Context, checks map[string]func(context.Context) error, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for name, check := range checks {
				cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := check(cctx); err != nil {
					logger.Warn().Err(err).Str("check", name).Msg("dependency unhealthy")
				}
				cancel()
			}
		}
	}
}
