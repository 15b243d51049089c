package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noticenter/internal/config"
	"noticenter/internal/domain/notification"
	"noticenter/internal/i18n"
	"noticenter/internal/infra/email"
	"noticenter/internal/infra/push"
	"noticenter/internal/infra/queue"
	"noticenter/internal/infra/ratelimit"
	"noticenter/internal/infra/sms"
	"noticenter/internal/infra/store"
	"noticenter/internal/infra/template"
	"noticenter/internal/router"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	ctx := context.Background()

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Translation Catalog
	catalog := i18n.NewCatalog(cfg.I18n.DefaultLocale)
	if err := catalog.LoadDir(cfg.I18n.LocalesDir); err != nil {
		slog.Error("failed to load locale catalogs", "error", err, "dir", cfg.I18n.LocalesDir)
		os.Exit(1)
	}
	slog.Info("translation catalog loaded", "dir", cfg.I18n.LocalesDir, "default_locale", cfg.I18n.DefaultLocale)

	// Template Engine
	tmplEngine, err := template.NewEngine(cfg.Templates.Dir)
	if err != nil {
		slog.Error("failed to initialize template engine", "error", err, "dir", cfg.Templates.Dir)
		os.Exit(1)
	}

	// Channel Dispatchers
	emailDispatcher := email.NewDispatcher(
		email.NewResendClient(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName),
		tmplEngine,
	)
	pushDispatcher := push.NewFCMDispatcher(cfg.Push.FCMServerKey)

	smsProvider, err := sms.NewProviderFromConfig(ctx, sms.ProviderConfig{
		Provider:         cfg.SMS.Provider,
		TwilioAccountSID: cfg.SMS.TwilioAccountSID,
		TwilioAuthToken:  cfg.SMS.TwilioAuthToken,
		TwilioFrom:       cfg.SMS.TwilioFrom,
		AWSRegion:        cfg.SMS.AWSRegion,
		SNSSenderID:      cfg.SMS.SNSSenderID,
	})
	if err != nil {
		slog.Error("failed to initialize sms provider", "error", err)
		os.Exit(1)
	}
	smsDispatcher := sms.NewDispatcher(smsProvider)
	slog.Info("channel dispatchers initialized", "sms_provider", smsProvider.Name())

	// Supabase Store
	notifStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize supabase store", "error", err)
		os.Exit(1)
	}
	slog.Info("supabase store initialized")

	// Queue Manager (enqueue-only in the API process)
	queueManager := queue.NewManager(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, queue.Config{
		Concurrency: map[notification.Channel]int{
			notification.ChannelEmail: cfg.Queues.EmailConcurrency,
			notification.ChannelPush:  cfg.Queues.PushConcurrency,
			notification.ChannelSMS:   cfg.Queues.SMSConcurrency,
		},
		MaxAttempts:        cfg.Queues.MaxAttempts,
		BackoffBase:        time.Duration(cfg.Queues.BackoffBaseSec) * time.Second,
		CompletedRetention: time.Duration(cfg.Queues.CompletedRetentionHr) * time.Hour,
	})
	defer queueManager.Shutdown()
	slog.Info("queue manager initialized", "redis", cfg.Redis.Address)

	// Recipient Rate Limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	recipientLimiter := ratelimit.NewRedisRecipientLimiter(redisClient, cfg.RecipientRateLimit.MaxPerHour)
	slog.Info("recipient rate limiter initialized", "max_per_hour", cfg.RecipientRateLimit.MaxPerHour)

	// Notification Center
	center := notification.NewCenter(
		catalog,
		emailDispatcher,
		pushDispatcher,
		smsDispatcher,
		notification.WithStore(notifStore),
		notification.WithQueue(queueManager),
		notification.WithRecipientRateLimiter(recipientLimiter),
	)

	// Handler
	notificationHandler := notification.NewHandler(center, notifStore, queueManager)

	// Router
	r := router.New(cfg, notificationHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
