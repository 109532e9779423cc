package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aznory/listinglens/config"
	"github.com/aznory/listinglens/internal/assembler"
	"github.com/aznory/listinglens/internal/clients"
	"github.com/aznory/listinglens/internal/db"
	"github.com/aznory/listinglens/internal/logging"
	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/pipeline"
	"github.com/aznory/listinglens/internal/plan"
	"github.com/aznory/listinglens/internal/reasoning"
	"github.com/aznory/listinglens/internal/server"
	"github.com/aznory/listinglens/internal/usage"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	openaiClient := clients.GetOpenAIClient()

	var vision reasoning.VisionObserver
	if os.Getenv("GEMINI_API_KEY") != "" {
		vision = clients.InitGemini(ctx)
		defer clients.CloseGemini()
	} else {
		slog.Warn("GEMINI_API_KEY not set, vision analysis disabled")
	}

	var cache pipeline.RunCache
	if os.Getenv("VALKEY_INIT_ADDRESS") != "" {
		clients.InitValkey()
		defer clients.CloseValkey()
		cache = clients.GetValkeyClient()
	}

	guard := buildGuard(ctx)

	var store pipeline.RunStore
	var history server.RunHistory
	if os.Getenv("ANALYSIS_RUNS_TABLE") != "" {
		db.InitDynamoDB()
		store = runStoreFunc(db.StoreAnalysisRun)
		history = db.GetRunsForASIN
	} else {
		slog.Warn("ANALYSIS_RUNS_TABLE not set, run persistence disabled")
	}

	engine := reasoning.NewEngine(openaiClient, vision, clients.NewImageFetcher())
	synthesizer := plan.NewSynthesizer(openaiClient)
	p := pipeline.New(guard, engine, synthesizer, store, cache)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.New(p, guard, history).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Analyzer listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.String("error", err.Error()))
			stopChan <- syscall.SIGTERM
		}
	}()

	<-stopChan
	slog.Info("Shutting down analyzer gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown did not complete cleanly", slog.String("error", err.Error()))
	}
}

// buildGuard wires the usage guard against Postgres when a DSN is
// configured, and an in-memory store otherwise.
func buildGuard(ctx context.Context) *usage.Guard {
	resolver := &usage.StaticPlanResolver{Default: models.PlanFree}

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		slog.Warn("POSTGRES_DSN not set, usage tracking is in-memory only")
		return usage.NewGuard(usage.NewMemoryStore(), resolver)
	}

	pg := clients.GetPostgresClient(ctx, dsn)
	pgStore := usage.NewPostgresStore(pg.DB)
	if err := pgStore.EnsureSchema(ctx); err != nil {
		slog.Error("Failed to ensure usage schema", slog.String("error", err.Error()))
		os.Exit(1)
	}
	return usage.NewGuard(pgStore, resolver)
}

// runStoreFunc adapts a bare function to the pipeline.RunStore interface.
type runStoreFunc func(ctx context.Context, result assembler.CombinedResult) error

func (f runStoreFunc) StoreAnalysisRun(ctx context.Context, result assembler.CombinedResult) error {
	return f(ctx, result)
}
