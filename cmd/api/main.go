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

	"detailing/internal/api"
	"detailing/internal/availability"
	"detailing/internal/catalog"
	"detailing/internal/config"
	"detailing/internal/database"
	"detailing/internal/domain"
	"detailing/internal/events"
	"detailing/internal/google"
	"detailing/internal/logging"
	"detailing/internal/metrics"
	"detailing/internal/notify"
	"detailing/internal/pricing"
	"detailing/internal/repository"
	"detailing/internal/service"
	"detailing/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

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

	cat, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
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
		defer repository.Close(redisClient)
	}

	schedule, err := availability.NewSchedule(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("init schedule: %w", err)
	}

	slotStore := repository.NewCachedBookingStore(db, initSlotCache(cfg, redisClient, logger), logging.Component(logger, "slot-cache"))
	pricingEngine := pricing.NewEngine(cat)
	availabilityEngine := availability.NewEngine(schedule, slotStore, logging.Component(logger, "availability"))

	eventBus := events.NewEventBus(logging.Component(logger, "events"))

	var syncWorker domain.SyncWorker
	if sheetsWorker := initSheetsSync(ctx, cfg, db, redisClient, logger); sheetsWorker != nil {
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	bookingService := service.NewBookingService(
		db, pricingEngine, availabilityEngine, eventBus, syncWorker,
		cfg.Schedule.MaxAdvanceDays, logging.Component(logger, "bookings"),
	).WithCache(slotStore).WithMinNotice(cfg.Schedule.MinNotice)

	if err := initTelegram(ctx, cfg, eventBus, bookingService, schedule.Location(), logger); err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
		go func() {
			if err := backupService.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("backup service stopped")
			}
		}()
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, api.NewBookingService(pricingEngine, availabilityEngine), logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, api.Dependencies{
		Pricing:      pricingEngine,
		Availability: availabilityEngine,
		Bookings:     bookingService,
		DB:           db,
		ExportsPath:  cfg.Exports.Path,
	}, logging.Component(logger, "http"))

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
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

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// loadCatalog reads the configured catalog file. With no path the built-in
// price list is used.
func loadCatalog(cfg *config.Config, logger *zerolog.Logger) (*catalog.Catalog, error) {
	path := os.Getenv("CATALOG_PATH")
	if path == "" {
		path = cfg.Catalog.Path
	}
	if path == "" {
		logger.Info().Msg("No catalog path configured, using built-in catalog")
		return catalog.Default(), nil
	}

	cat, err := catalog.Load(path)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("load catalog")
		return nil, err
	}
	logger.Info().
		Str("catalog_path", path).
		Int("services", len(cat.Services())).
		Int("add_ons", len(cat.AddOns())).
		Int("zones", len(cat.Zones())).
		Msg("catalog loaded")
	return cat, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initSlotCache prefers redis with an in-process fallback.
func initSlotCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SlotCache {
	memory := repository.NewMemorySlotCache(cfg.Cache.SlotTTL)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSlotCache(
		repository.NewRedisSlotCache(redisClient, cfg.Cache.SlotTTL),
		memory,
		logging.Component(logger, "slot-cache"),
	)
}

func initTelegram(
	ctx context.Context,
	cfg *config.Config,
	bus *events.EventBus,
	bookings notify.BookingLister,
	loc *time.Location,
	logger *zerolog.Logger,
) error {
	tg := cfg.Notifications.Telegram
	if !tg.Enabled {
		return nil
	}

	bot, err := notify.NewBot(tg.BotToken, tg.Debug)
	if err != nil {
		return fmt.Errorf("init telegram bot: %w", err)
	}

	notifier := notify.NewTelegramNotifier(bot, tg.ChatIDs, logging.Component(logger, "telegram"))
	notifier.Subscribe(bus)
	logger.Info().Str("bot", bot.Self.UserName).Int("chats", len(tg.ChatIDs)).Msg("telegram notifications enabled")

	if tg.AgendaTime == "" {
		return nil
	}
	agenda, err := notify.NewDailyAgenda(bot, tg.ChatIDs, bookings, loc, tg.AgendaTime, logging.Component(logger, "agenda"))
	if err != nil {
		return err
	}
	go agenda.Start(ctx)
	return nil
}

func initSheetsSync(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		return nil
	}

	sheetsLogger := logging.Component(logger, "sheets")
	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID, cfg.Google.BookingsSheetName, sheetsLogger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to write sheet header")
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to warm up sheet row cache")
	}
	go sheetsService.RefreshCache(ctx, 30*time.Minute)

	logger.Info().Str("sheet", cfg.Google.BookingsSheetName).Msg("google sheets connected")

	w := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), logging.Component(logger, "sheets-worker"))
	// the sheet is reachable again, so give earlier failures another go
	if _, err := w.RequeueFailed(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to requeue sheet tasks")
	}
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		logger.Info().Str("grpc_addr", grpcServer.Addr()).Msg("gRPC enabled")
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("http", cfg.API.HTTP.Enabled).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
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
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
