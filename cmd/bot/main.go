package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/roseviahq/ticketbot/internal/api/http"
	"github.com/roseviahq/ticketbot/internal/api/http/handlers"
	"github.com/roseviahq/ticketbot/internal/auth"
	"github.com/roseviahq/ticketbot/internal/bot"
	"github.com/roseviahq/ticketbot/internal/config"
	"github.com/roseviahq/ticketbot/internal/events"
	"github.com/roseviahq/ticketbot/internal/gateway"
	"github.com/roseviahq/ticketbot/internal/observability"
	"github.com/roseviahq/ticketbot/internal/persistence"
	"github.com/roseviahq/ticketbot/internal/repository"
	"github.com/roseviahq/ticketbot/internal/service"
	"github.com/roseviahq/ticketbot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMembers

	dispatcher := events.NewInMemoryDispatcher()
	registry := repository.NewTicketRegistry(cfg.Ticket.TTL())
	channelGateway := gateway.NewDiscordGateway(session, cfg.Discord, logger)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Registry:      registry,
		Gateway:       channelGateway,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		TTL:           cfg.Ticket.TTL(),
		PaymentLinks:  cfg.Payment.Links,
		ChannelPrefix: cfg.Ticket.ChannelPrefix,
		DeleteOnClose: cfg.Ticket.DeleteOnClose,
	})
	defer lifecycle.Shutdown()

	notifications := service.NewNotificationService(dispatcher, logger, os.Getenv("NOTIFY_WEBHOOK_URL"))
	worker.StartNotificationWorker(notifications)

	ticketBot := bot.New(session, lifecycle, cfg.Payment.Links, logger)
	ticketBot.Register()

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}
	defer session.Close()

	if cfg.Auth.AdminPasswordHash == "" && cfg.Auth.AdminPassword != "" {
		hash, err := auth.HashPassword(cfg.Auth.AdminPassword, cfg.Auth.BcryptCost)
		if err != nil {
			logger.Fatal("failed to hash admin password", zap.Error(err))
		}
		cfg.Auth.AdminPasswordHash = hash
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	replayGuard := repository.NewReplayGuard(redis.Client, 24*time.Hour)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis, func() bool {
		return session.DataReady
	})
	unlockHandler := handlers.NewUnlockHandler(lifecycle, replayGuard, cfg.Payment.WebhookSecret, logger)
	adminHandler := handlers.NewAdminHandler(lifecycle, tokens, cfg.Auth)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Unlock:         unlockHandler,
		Admin:          adminHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
