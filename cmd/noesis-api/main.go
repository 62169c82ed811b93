package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/PabloGalante/noesis-agent/internal/adapters/http"
	"github.com/PabloGalante/noesis-agent/internal/adapters/llm"
	"github.com/PabloGalante/noesis-agent/internal/adapters/search"
	memstore "github.com/PabloGalante/noesis-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/noesis-agent/internal/app/research"
	"github.com/PabloGalante/noesis-agent/internal/config"
	"github.com/PabloGalante/noesis-agent/internal/domain"
	"github.com/PabloGalante/noesis-agent/internal/observability"
	"github.com/PabloGalante/noesis-agent/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run0())
}

func run0() int {
	// .env is a dev convenience; deployments set real env vars.
	_ = godotenv.Load()

	cfg := config.Load()
	log := observability.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("noesis api exited with error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config) error {
	log := observability.Logger()

	registry := memstore.NewRegistry()
	pool := worker.NewPool(ctx, cfg.Workers, cfg.QueueSize)

	svc := research.NewService(
		registry,
		pool,
		completionFactory(cfg),
		searchFactory(cfg),
		cfg.MaxRounds,
		cfg.SearchTimeout,
	)
	handler := httpadapter.NewServer(svc)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("noesis api listening",
			"addr", srv.Addr,
			"mode", string(cfg.Mode),
			"workers", cfg.Workers,
			"max_rounds", cfg.MaxRounds,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")

	// Stop accepting requests first, then let in-flight runs observe the
	// cancelled base context and settle before the pool drains.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}

	if err := pool.Close(); err != nil && !errors.Is(err, worker.ErrPoolClosed) {
		log.Error("worker pool shutdown", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}

// completionFactory picks between the mock and the Gemini client once at
// startup; the returned factory then builds one client per session from the
// key that session's start request carried.
func completionFactory(cfg *config.Config) research.CompletionFactory {
	if cfg.UseMockLLM {
		observability.Logger().Info("using mock completion client")
		return func(ctx context.Context, apiKey string) (domain.CompletionClient, error) {
			return llm.NewMockLLM(), nil
		}
	}

	observability.Logger().Info("using gemini completion client", "model", cfg.ModelName)
	return func(ctx context.Context, apiKey string) (domain.CompletionClient, error) {
		return llm.NewGeminiClient(ctx, apiKey, cfg.ModelName)
	}
}

// searchFactory builds per-session search clients. A web-search key puts
// SerpAPI first; the arXiv provider is always present as the fallback, so a
// session without a key still gets literature grounding.
func searchFactory(cfg *config.Config) research.SearchFactory {
	return func(serpAPIKey string) domain.SearchClient {
		var providers []search.Provider
		if serpAPIKey != "" {
			providers = append(providers, search.NewSerpAPI(serpAPIKey))
		}
		providers = append(providers, search.NewArxiv())
		return search.NewClient(cfg.MaxSearchQueries, cfg.SearchMinInterval, providers...)
	}
}
