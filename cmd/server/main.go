package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/docchunk/internal/api"
	"github.com/dgallion1/docchunk/internal/config"
	"github.com/dgallion1/docchunk/internal/events"
	"github.com/dgallion1/docchunk/internal/fetch"
	"github.com/dgallion1/docchunk/internal/logger"
	"github.com/dgallion1/docchunk/internal/parser"
	"github.com/dgallion1/docchunk/internal/pipeline"
	"github.com/dgallion1/docchunk/internal/tokenizer"
)

func main() {
	// Optional .env for local runs.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize clients.
	var publisher events.Publisher = events.NewNoOpPublisher()
	if cfg.NATSURL != "" {
		p, err := events.NewNATS(log, cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Error("nats unavailable; job events disabled", "error", err)
		} else {
			publisher = p
		}
	}
	fetcher := fetch.NewClient(cfg.FetchTimeout, cfg.MaxFetchBytes)
	counter := tokenizer.NewCounter(cfg.TokenEncoding, log)
	registry := parser.NewRegistry(parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})

	// Initialize pipeline.
	engine := pipeline.NewEngine(registry, fetcher, counter, pipeline.NewStats(time.Hour), log,
		cfg.ChunkConfig(), cfg.ChunkOptions()...)
	engine.SetRetryPolicy(pipeline.RetryPolicy{
		Attempts:  cfg.FetchAttempts,
		BaseDelay: cfg.FetchBaseDelay,
		MaxDelay:  cfg.FetchMaxDelay,
	})
	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, engine, publisher, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		if err := publisher.Close(); err != nil {
			log.Warn("close publisher", "error", err)
		}
		fetcher.Close()
	}()

	log.Info("starting docchunk",
		"port", cfg.Port,
		"workers", cfg.WorkerCount,
		"max_words", cfg.DefaultMaxWords,
		"granularity", cfg.DefaultGranularity,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
