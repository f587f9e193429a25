package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"movie-shop/config"
	"movie-shop/internal/api"
	"movie-shop/internal/bot"
	"movie-shop/internal/broker"
	"movie-shop/internal/catalog"
	"movie-shop/internal/payhero"
	"movie-shop/internal/redisclient"
	"movie-shop/internal/service"
	"movie-shop/internal/util"
	"movie-shop/internal/worker"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the callback listener and the chat poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := setup(cfg); err != nil {
				return err
			}
			defer util.SyncLogger()
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := util.GetLogger()
	logger.Info("Starting movie shop", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer("movie-shop", cfg.Observ.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	if cfg.Business.CatalogFile != "" {
		items, err := catalog.LoadFile(cfg.Business.CatalogFile)
		if err != nil {
			return err
		}
		n, err := catalog.Seed(ctx, db, items)
		if err != nil {
			return err
		}
		logger.Info("Catalog seeded", zap.String("file", cfg.Business.CatalogFile), zap.Int("items", n))
	}

	var convs bot.ConversationStore = db
	var redisClient *redisclient.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Business.ConversationTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		convs = redisClient
		logger.Info("Conversation state in Redis", zap.Duration("ttl", cfg.Business.ConversationTTL))
	}

	var producer *broker.Producer
	if cfg.Kafka.Enabled() {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicPayments)
		defer producer.Close()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicPayments))
	}
	eventPublisher := broker.NewEventPublisher(producer)

	// Sends are bounded by TELEGRAM_SEND_TIMEOUT_SECONDS; the poller below
	// gets its own client sized for the long poll.
	sendAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint,
		&http.Client{Timeout: cfg.Telegram.SendTimeout})
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}
	logger.Info("Telegram connected", zap.String("bot", sendAPI.Self.UserName))

	gateway := payhero.NewClient(payhero.Config{
		APIURL:      cfg.Payhero.APIURL,
		Username:    cfg.Payhero.Username,
		Password:    cfg.Payhero.Password,
		ChannelID:   cfg.Payhero.ChannelID,
		CallbackURL: cfg.Payhero.CallbackURL,
		Timeout:     cfg.Payhero.Timeout,
	})
	if cfg.Payhero.CallbackURL == "" {
		logger.Warn("YOUR_PUBLIC_CALLBACK_URL is not set, payments will never be confirmed")
	}

	notifier := bot.NewNotifier(sendAPI, cfg.Telegram.AdminID)
	registry := service.NewIntentRegistry(db)
	reconciler := service.NewReconciler(db, registry, notifier, eventPublisher)
	checkout := service.NewCheckout(db, registry, gateway, notifier, eventPublisher)
	chatBot := bot.New(sendAPI, db, convs, checkout, notifier, cfg.Telegram.AdminID)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var botWorker *worker.BotWorker
	if cfg.Telegram.Polling {
		pollAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint,
			&http.Client{Timeout: cfg.Telegram.PollTimeout + 10*time.Second})
		if err != nil {
			return fmt.Errorf("failed to connect to Telegram: %w", err)
		}
		if _, err := pollAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn("Failed to remove webhook", zap.Error(err))
		}

		botWorker = worker.NewBotWorker(pollAPI, chatBot, cfg.Telegram.PollTimeout)
		go func() {
			if err := botWorker.Start(ctx); err != nil {
				logger.Error("Bot worker error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("Polling disabled")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(reconciler, db, cfg.Server.DebugToken, cfg.Telegram.Polling)
	if redisClient != nil {
		handler.AddReadinessCheck("redis", redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
		stop()
	}

	if botWorker != nil {
		botWorker.Stop()
		<-botWorker.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
	return runErr
}
