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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"brainvibe/backend/internal/adapter"
	"brainvibe/backend/internal/brain"
	"brainvibe/backend/internal/server"
	"brainvibe/backend/internal/storage"
	"brainvibe/backend/pkg/config"
	"brainvibe/backend/pkg/logger"
)

func main() {
	if code := serve(); code != 0 {
		os.Exit(code)
	}
}

// serve returns the process exit code once the logger has been flushed
func serve() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	log := logger.Get()

	if err := run(cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		return 1
	}
	log.Info("Server exited")
	return 0
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics, err := storage.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := topics.Close(closeCtx); err != nil {
			log.Error("Failed to close store", zap.Error(err))
		}
	}()
	log.Info("Store loaded",
		zap.String("backend", cfg.StoreBackend),
		zap.Int("topics", len(topics.Topics())),
		zap.Int("projects", len(topics.Projects())),
	)

	srv := server.New(brain.NewPipeline(topics), newExtractor(cfg, log), server.Options{
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		Production:      cfg.IsProduction(),
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newExtractor returns nil when no model key is configured
func newExtractor(cfg *config.Config, log *zap.Logger) server.Extractor {
	if !cfg.LLMEnabled() {
		log.Warn("GEMINI_API_KEY not set, diff analysis disabled")
		return nil
	}
	return adapter.NewTopicExtractor(adapter.Options{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.ModelID,
		Timeout:           cfg.LLMTimeout,
		MaxRetries:        cfg.LLMMaxRetries,
		RequestsPerMinute: cfg.LLMRequestsPerMin,
		MaxDiffBytes:      cfg.MaxDiffBytes,
	})
}
