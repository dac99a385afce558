// cmd/orchestrator/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"followup-orchestrator/internal/common/config"
	"followup-orchestrator/internal/common/database"
	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/common/observability"
	"followup-orchestrator/internal/followup/orchestrator"
	"followup-orchestrator/internal/followup/retrieval"
	"followup-orchestrator/internal/followup/saveddata"
	"followup-orchestrator/internal/followup/websearch"
	"followup-orchestrator/internal/llm"
	"followup-orchestrator/internal/openfda"
	"followup-orchestrator/internal/search"
	"followup-orchestrator/internal/server"
	"followup-orchestrator/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting follow-up orchestrator...")

	obs := observability.New("followup-orchestrator")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var indexer orchestrator.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		if cfg.Orchestrator.IndexTranscripts {
			indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		}
	}

	// --- Build pipeline components ---
	completer := llm.NewClient(llm.Config{
		APIKey:         cfg.APIs.OpenAI.APIKey,
		BaseURL:        cfg.APIs.OpenAI.BaseURL,
		Model:          cfg.APIs.OpenAI.Model,
		WebSearchModel: cfg.APIs.OpenAI.WebSearchModel,
		MaxTokens:      cfg.APIs.OpenAI.MaxTokens,
		Temperature:    float32(cfg.APIs.OpenAI.Temperature),
	})

	fdaClient := openfda.NewClient(
		&openfda.Config{
			BaseURL: cfg.APIs.OpenFDA.BaseURL,
			APIKey:  cfg.APIs.OpenFDA.APIKey,
			Limit:   cfg.APIs.OpenFDA.Limit,
		},
		&http.Client{Timeout: time.Duration(cfg.APIs.OpenFDA.Timeout) * time.Millisecond},
		log,
	)

	conversationStore := store.New(pg.DB, log)

	dedupWindow := time.Duration(cfg.Orchestrator.DedupWindow) * time.Second
	orch := orchestrator.New(
		&orchestrator.Config{
			DedupWindow: dedupWindow,
			DedupScan:   cfg.Orchestrator.DedupScan,
		},
		conversationStore,
		saveddata.New(completer, log),
		retrieval.New(completer, fdaClient, log),
		websearch.New(completer, log),
		orchestrator.NewRedisGuard(redisClient.Client, dedupWindow),
		indexer,
		obs,
		log,
	)

	srv := server.NewServer(orch, conversationStore, &cfg.Server, zapLog)

	// --- Start server and wait for shutdown signal ---
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		zapLog.Fatal("server failed", zap.Error(err))
	case sig := <-sigCh:
		zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("orchestrator stopped")
}
