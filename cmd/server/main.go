package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alteris/gateway/internal/clients"
	"alteris/gateway/internal/config"
	internalhttp "alteris/gateway/internal/http"
	"alteris/gateway/internal/jobs"
	"alteris/gateway/internal/logging"
	"alteris/gateway/internal/mail"
	"alteris/gateway/internal/notify"
	"alteris/gateway/internal/planning"
	"alteris/gateway/internal/session"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cs := clients.New(cfg)
	defer cs.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	sessions := session.NewRegistry(redisClient, cfg.SessionTTL)
	cache := planning.NewCache(cs.Admin, redisClient, cfg.PlanningCacheTTL)
	agg := notify.NewAggregator(cs.Apprenti, cs.Jury, cache, logger)

	var mailer mail.Service
	if cfg.MailEnabled && cfg.SendgridAPIKey != "" {
		mailer = mail.NewSendgridService(cfg.SendgridAPIKey, cfg.MailFrom, cfg.MailFromName)
	} else {
		mailer = mail.NewConsoleService(logger)
	}

	server := internalhttp.NewServer(cfg, logger, cs, sessions, cache, agg, mailer)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartPlanningWarmJob(ctx, cfg, cache, logger)

	go func() {
		logger.Info("gateway http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
