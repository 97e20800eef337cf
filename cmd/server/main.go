package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/tutor_sessions/internal/app"
	"github.com/Freeeeeet/tutor_sessions/internal/availability"
	"github.com/Freeeeeet/tutor_sessions/internal/config"
	"github.com/Freeeeeet/tutor_sessions/internal/controller/rest"
	"github.com/Freeeeeet/tutor_sessions/internal/meeting"
	"github.com/Freeeeeet/tutor_sessions/internal/notify"
	"github.com/Freeeeeet/tutor_sessions/internal/service"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting tutor sessions service",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.StorageDriver),
		zap.String("timezone", cfg.Timezone))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer storage.Close()

	linker, err := newMeetingLinker(cfg)
	if err != nil {
		logger.Fatal("Failed to configure meeting links", zap.Error(err))
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to configure notification sender", zap.Error(err))
	}

	rules := availability.DefaultRules(cfg.Location)

	capacity := service.NewCapacityEnforcer(storage.Sessions, rules)
	booking := service.NewBookingService(storage.Sessions, storage.Programs, storage.Users,
		storage.Subjects, storage.Outbox, linker, capacity, rules, logger)
	slots := service.NewAvailabilityService(storage.Sessions, storage.Programs, storage.Users, capacity, rules, logger)

	dispatcher := notify.NewDispatcher(storage.Outbox, storage.Users, sender,
		cfg.OutboxBatch, cfg.OutboxMaxAttempts, logger)
	scheduler := app.NewScheduler(dispatcher, cfg.OutboxInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := rest.NewApp(
		rest.NewSessionHandler(booking, slots, cfg.Location, logger),
		rest.NewHealthHandler(storage.Ping),
		logger,
	)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.Listen(cfg.HTTPAddr); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}
	logger.Info("Service stopped")
}

// newMeetingLinker внешний API видеовстреч, если задан, иначе ссылки на комнаты
func newMeetingLinker(cfg *config.Config) (service.MeetingLinker, error) {
	if cfg.MeetingAPIURL != "" {
		return meeting.NewClient(cfg.MeetingAPIURL, cfg.MeetingAPIKey), nil
	}
	linker, err := meeting.NewRoomLinker(cfg.MeetingBaseURL)
	if errors.Is(err, meeting.ErrNoBaseURL) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return linker, nil
}

// newSender отправка в Telegram при наличии токена, иначе только в лог
func newSender(cfg *config.Config, logger *zap.Logger) (notify.Sender, error) {
	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_TOKEN is empty, notifications are written to the log")
		return notify.NewLogSender(logger), nil
	}
	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	return notify.NewTelegramSender(b, logger), nil
}
