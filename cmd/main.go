package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"devlog/internal/assistant"
	"devlog/internal/completion"
	"devlog/internal/config"
	"devlog/internal/database"
	"devlog/internal/ratelimiter"
	"devlog/internal/scheduler"
	"devlog/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.ErrorContext(ctx, "Failed to load .env file",
			"error", err)

		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	completer := initCompletionClient(ctx, cfg, log)

	asst := assistant.New(completer, assistant.Options{
		CacheMaxEntries: cfg.CacheMaxEntries,
		CacheTTL:        cfg.CacheTTL,
		Recorder:        db,
		Log:             log,
	})

	limiter := ratelimiter.New(cfg.RateLimitInterval, cfg.RateLimitMaxWait, log)

	sched := scheduler.New(ctx, db, limiter, cfg.RequestLogRetention, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"limiterSpec", scheduler.LimiterPruneSpec,
			"requestLogSpec", scheduler.RequestLogPruneSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"limiterSpec", scheduler.LimiterPruneSpec,
		"requestLogSpec", scheduler.RequestLogPruneSpec,
		"retention", cfg.RequestLogRetention.String())

	srv, err := server.New(server.Config{
		Addr:            cfg.HTTPAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		TrustedProxies:  cfg.TrustedProxies,
		MaxContentBytes: cfg.MaxContentBytes,
	}, asst, limiter, db, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize server",
			"error", err)

		return
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	log.InfoContext(ctx, "Server is started",
		"addr", cfg.HTTPAddr,
		"allowedOrigins", cfg.AllowedOrigins)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serverErr:
		if err != nil {
			log.ErrorContext(ctx, "Server stopped unexpectedly",
				"error", err,
				"addr", cfg.HTTPAddr)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Failed to shut down server",
			"error", err)
	}

	log.InfoContext(shutdownCtx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())
}

func initCompletionClient(ctx context.Context, cfg config.Config, log *slog.Logger) *completion.Client {
	if cfg.GroqAPIKey == "" {
		log.WarnContext(ctx, "GROQ_API_KEY is missing so assistant requests will fail",
			"envVar", "GROQ_API_KEY")
	}

	client := completion.New(completion.Config{
		APIKey:      cfg.GroqAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Timeout:     cfg.LLMTimeout,
	})

	log.InfoContext(ctx, "Completion client is initialized",
		"baseURL", cfg.LLMBaseURL,
		"model", client.Model(),
		"temperature", cfg.LLMTemperature,
		"timeout", cfg.LLMTimeout.String())

	return client
}
