package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"receipts-bot/internal/common/config"
	"receipts-bot/internal/common/logger"
	apphttp "receipts-bot/internal/http"
	"receipts-bot/internal/i18n"
	"receipts-bot/internal/platform/postgres"
	"receipts-bot/internal/platform/storage"
	"receipts-bot/internal/platform/telegram"
	pgrepo "receipts-bot/internal/repository/postgres"
	"receipts-bot/internal/service/notifications"
	"receipts-bot/internal/service/records"
	"receipts-bot/internal/service/review"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("admin API stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("receipts-admin", false)
		return err
	}
	logger.Init(cfg.ServiceName+"-admin", cfg.Debug)
	logger.Info().Int("port", cfg.Server.Port).Int("admins", len(cfg.Telegram.AdminIDs)).Msg("Starting review API")
	if len(cfg.Telegram.AdminIDs) == 0 {
		logger.Warn().Msg("ADMIN_IDS is empty, every API call will be forbidden")
	}

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

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	db := pg.GetDB()
	store := records.NewStore(
		pgrepo.NewUserRepository(db),
		pgrepo.NewBranchRepository(db),
		pgrepo.NewReceiptRepository(db),
		pgrepo.NewSettingsRepository(db),
		files,
	)
	dispatcher := notifications.NewDispatcher(
		notifications.TelegramSessions(cfg.Telegram.BotToken, telegram.WithBaseURL(cfg.Telegram.APIBaseURL)),
		catalog,
	)
	reviews := review.NewService(store, dispatcher)

	router := apphttp.NewRouter(apphttp.RouterConfig{
		BotToken:    cfg.Telegram.BotToken,
		InitDataTTL: cfg.Telegram.InitDataTTL,
		Origins:     cfg.Server.Origins,
		IsAdmin:     cfg.IsAdmin,
		Debug:       cfg.Debug,
	}, store, reviews, map[string]apphttp.Checker{
		"postgres": pg.HealthCheck,
		"storage":  files.HealthCheck,
	})
	server := apphttp.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info().Msg("Server exited")
	return err
}
