package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-assess/internal/ai"
	"github.com/p-n-ai/pai-assess/internal/assembler"
	"github.com/p-n-ai/pai-assess/internal/assessment"
	"github.com/p-n-ai/pai-assess/internal/events"
	"github.com/p-n-ai/pai-assess/internal/grading"
	"github.com/p-n-ai/pai-assess/internal/httpapi"
	"github.com/p-n-ai/pai-assess/internal/mastery"
	"github.com/p-n-ai/pai-assess/internal/material"
	"github.com/p-n-ai/pai-assess/internal/platform/cache"
	"github.com/p-n-ai/pai-assess/internal/platform/config"
	"github.com/p-n-ai/pai-assess/internal/platform/database"
	"github.com/p-n-ai/pai-assess/internal/platform/logging"
	"github.com/p-n-ai/pai-assess/internal/questionsource"
	"github.com/p-n-ai/pai-assess/internal/results"
	"github.com/p-n-ai/pai-assess/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	kv, err := cache.New(ctx, cfg.Cache.URL)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	router, err := newAIRouter(cfg.AI)
	if err != nil {
		return err
	}
	slog.Info("AI providers registered", "providers", router.Providers())

	dir, err := newRoster(ctx, cfg.Roster, db)
	if err != nil {
		return err
	}

	quizzes, err := assessment.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}
	profiles, err := mastery.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}
	noteStore, err := material.NewPostgresNoteStore(db.Pool)
	if err != nil {
		return err
	}
	eventLog := events.NewPostgresLogger(db.Pool)
	extractor := material.NewTikaExtractor(cfg.Extractor.URL)

	notes := material.NewService(noteStore, material.NewRedisBlobStore(kv), extractor, dir, eventLog)
	source := questionsource.NewAISource(router, questionsource.WithMaxAttempts(cfg.Assembly.MaxAttempts))
	asm := assembler.New(quizzes, profiles, source, dir, notes, eventLog, assembler.Config{
		QuestionsPerQuiz:  cfg.Assembly.QuestionsPerQuiz,
		Concurrency:       cfg.Assembly.Concurrency,
		GenerationTimeout: cfg.Assembly.GenerationTimeout,
	})

	ready := map[string]httpapi.Checker{
		"database": db,
		"cache":    kv,
		"ai":       router,
	}
	if cfg.Extractor.URL != "" {
		ready["extractor"] = extractor
	}

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout: 10 * time.Second,
		// Assignment creation extends its own deadline from the class size.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httpapi.Deps{
		Notes:       notes,
		Assignments: asm,
		Grading:     grading.New(quizzes, profiles, eventLog),
		Results:     results.New(quizzes, dir),
		Ready:       ready,
		Logger:      logger,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newAIRouter registers every configured provider in fallback order.
func newAIRouter(cfg config.AIConfig) (*ai.Router, error) {
	router := ai.NewRouter()

	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithDefaultModel(cfg.OpenAI.Model)))
	}
	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, ai.WithAnthropicModel(cfg.Anthropic.Model))
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		router.Register("anthropic", p)
	}
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, ai.WithDefaultModel(cfg.DeepSeek.Model)))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithDefaultModel(cfg.OpenRouter.Model)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithDefaultModel(cfg.Ollama.Model)))
	}

	if !router.HasProvider() {
		return nil, ai.ErrNoProvider
	}
	return router, nil
}

func newRoster(ctx context.Context, cfg config.RosterConfig, db *database.DB) (roster.Directory, error) {
	switch cfg.Source {
	case "file":
		return roster.NewFileDirectory(cfg.Path)
	case "postgres":
		dir, err := roster.NewPostgresDirectory(db.Pool)
		if err != nil {
			return nil, err
		}
		if cfg.SeedPath != "" {
			if err := seedRoster(ctx, dir, cfg.SeedPath); err != nil {
				return nil, err
			}
		}
		return dir, nil
	default:
		return nil, fmt.Errorf("unknown roster source %q", cfg.Source)
	}
}

// seedRoster upserts the classes found under path.
func seedRoster(ctx context.Context, w roster.Writer, path string) error {
	seed, err := roster.NewFileDirectory(path)
	if err != nil {
		return fmt.Errorf("load roster seed: %w", err)
	}
	classes := seed.Classes()
	if err := roster.Sync(ctx, w, classes); err != nil {
		return err
	}
	slog.Info("roster seeded", "path", path, "classes", len(classes))
	return nil
}
