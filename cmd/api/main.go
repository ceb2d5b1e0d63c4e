package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentalhub/internal/api"
	"rentalhub/internal/config"
	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/logging"
	"rentalhub/internal/metrics"
	"rentalhub/internal/repository"
	"rentalhub/internal/security"
	"rentalhub/internal/service"
	"rentalhub/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const recipientCacheSize = 1024

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	bus := events.NewEventBus()
	svc := buildServices(cfg, db, redisClient, bus, logger)

	notifier, err := initNotifications(cfg, db, redisClient, bus, logger)
	if err != nil {
		return err
	}
	notifier.Start(ctx)

	backup := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
	go func() {
		if err := backup.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("backup scheduler stopped")
		}
	}()

	startMetrics(ctx, cfg, logger)

	tokens := security.NewTokenManager(cfg.API.Auth.JWTSecret, cfg.API.Auth.Issuer, cfg.API.Auth.TokenTTL)
	httpServer := api.NewHTTPServer(cfg.API, svc, tokens, db, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, db, tokens, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	err = startServers(ctx, grpcServer, httpServer, cfg, logger)
	notifier.Wait()
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory quotas and queue")
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func buildServices(cfg *config.Config, db *database.DB, redisClient *redis.Client, bus *events.EventBus, logger *zerolog.Logger) api.Services {
	svcLogger := logging.Component(logger, "service")

	var quota domain.QuotaStore = repository.NewMemoryQuotaRepository()
	if redisClient != nil {
		quota = repository.NewFailoverQuotaRepository(
			repository.NewRedisQuotaRepository(redisClient),
			quota,
			logging.Component(logger, "quota"),
		)
	}

	if cfg.Payments.ProviderAccessToken != "" {
		// provider SDK integration lives outside the core
		logger.Warn().Msg("payments.provider_access_token is set but no provider client is linked; running simulated")
	}

	rentals := service.NewRentalService(db, db, db, bus, cfg.Rentals.MaxRentalDays, svcLogger)
	return api.Services{
		Users:     service.NewUserService(db, db, svcLogger),
		Equipment: service.NewEquipmentService(db, svcLogger),
		Rentals:   rentals,
		Payments:  service.NewPaymentService(db, db, rentals, nil, cfg.Payments, bus, svcLogger),
		Reviews:   service.NewReviewService(db, db, db, db, svcLogger),
		Messages:  service.NewMessageService(db, db, quota, bus, cfg.Messaging, svcLogger),
		Export:    service.NewExportService(db, db, svcLogger),
	}
}

func initNotifications(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	bus *events.EventBus,
	logger *zerolog.Logger,
) (*worker.Notifier, error) {
	workerLogger := logging.Component(logger, "notifications")
	queue := worker.NewNotificationQueue(redisClient, cfg.Notifications.QueueKey, workerLogger)

	dispatcher, err := worker.NewNotificationDispatcher(db, queue, recipientCacheSize, workerLogger)
	if err != nil {
		return nil, fmt.Errorf("create notification dispatcher: %w", err)
	}
	dispatcher.Subscribe(bus)

	var senders []domain.NotificationSender
	if cfg.Notifications.SendGridAPIKey != "" {
		senders = append(senders, worker.NewSendGridSender(
			cfg.Notifications.SendGridAPIKey,
			cfg.Notifications.FromEmail,
			cfg.Notifications.FromName,
		))
	} else {
		senders = append(senders, worker.NewLogSender(workerLogger))
	}

	if cfg.Notifications.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Notifications.TelegramBotToken)
		if err != nil {
			workerLogger.Warn().Err(err).Msg("telegram bot init failed, continuing without telegram")
		} else {
			workerLogger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
			senders = append(senders, worker.NewTelegramSender(bot))
		}
	}

	return worker.NewNotifier(queue, senders, workerLogger), nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	logger.Info().
		Int("http_port", cfg.API.HTTP.Port).
		Bool("grpc", grpcServer != nil).
		Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
