package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noticenter/internal/config"
	"noticenter/internal/domain/notification"
	"noticenter/internal/infra/email"
	"noticenter/internal/infra/push"
	"noticenter/internal/infra/queue"
	"noticenter/internal/infra/sms"
	"noticenter/internal/infra/store"
	"noticenter/internal/infra/template"
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

	slog.Info("worker configuration loaded")

	ctx := context.Background()

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Template Engine
	tmplEngine, err := template.NewEngine(cfg.Templates.Dir)
	if err != nil {
		slog.Error("failed to initialize template engine", "error", err, "dir", cfg.Templates.Dir)
		os.Exit(1)
	}
	slog.Info("template engine initialized", "dir", cfg.Templates.Dir)

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

	// Delivery Worker
	notifWorker := notification.NewWorker(notifStore, emailDispatcher, pushDispatcher, smsDispatcher)

	// ==========================================
	// Queue Manager (per-channel worker pools)
	// ==========================================

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

	if err := queueManager.StartWorkers(notifWorker.ProcessJob); err != nil {
		slog.Error("failed to start queue workers", "error", err)
		os.Exit(1)
	}
	slog.Info("queue workers started",
		"email_concurrency", cfg.Queues.EmailConcurrency,
		"push_concurrency", cfg.Queues.PushConcurrency,
		"sms_concurrency", cfg.Queues.SMSConcurrency,
		"redis", cfg.Redis.Address,
	)

	// ==========================================
	// Stale Record Reaper
	// ==========================================

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	reaper := notification.NewReaper(notifStore, queueManager, notification.ReaperConfig{
		Interval:       time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		StaleThreshold: time.Duration(cfg.Reaper.StaleThresholdSec) * time.Second,
		BatchSize:      cfg.Reaper.BatchSize,
	})

	go reaper.Run(reaperCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	reaperCancel() // Stop the reaper first
	queueManager.Shutdown()
	slog.Info("worker exited gracefully")
}
