package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/chatbot"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()
	st := res.Store

	// AMQP is optional for the API: without a broker, events are skipped.
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
			amqp.Queues{Events: cfg.AMQPEventsQueue, Chat: cfg.AMQPChatQueue}, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange)
		}
	}

	statsCache := cache.NewLRUCache[core.Statistics](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	stats := services.NewStatisticsService(st, statsCache)
	txs := services.NewTransactionService(st, stats, publisher)

	chatOpts := []chatbot.Option{chatbot.WithLogger(logger)}
	switch cfg.ChatHistory {
	case config.ChatHistoryDirect:
		chatOpts = append(chatOpts, chatbot.WithHistory(st, st))
	case config.ChatHistoryAMQP:
		if amqpClient != nil {
			chatOpts = append(chatOpts, chatbot.WithHistory(amqpClient, st))
		} else {
			logger.Warn("Chat history over AMQP unavailable, storing directly")
			chatOpts = append(chatOpts, chatbot.WithHistory(st, st))
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Identity:           identity.New(st, cfg.JWTSecret, identity.WithTokenTTL(cfg.TokenTTL)),
		Transactions:       txs,
		Statistics:         stats,
		Chat:               chatbot.New(stats, txs, chatOpts...),
		Ready:              func(ctx context.Context) error { return backend.Ping(ctx, st) },
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		CacheStats:         statsCache.Stats,
	})

	sigCtx, stop := cli.GracefulShutdown(logger, 30*time.Second, nil)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
