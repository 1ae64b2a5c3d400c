package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/grambazaar/bazarsearch/internal/config"
	"github.com/grambazaar/bazarsearch/internal/db"
	dbRedis "github.com/grambazaar/bazarsearch/internal/db/redis"
	"github.com/grambazaar/bazarsearch/internal/domain"
	"github.com/grambazaar/bazarsearch/internal/domain/listing"
	logpkg "github.com/grambazaar/bazarsearch/internal/logger"
	"github.com/grambazaar/bazarsearch/internal/metrics"
	catalogrepo "github.com/grambazaar/bazarsearch/internal/repository/catalog"
	"github.com/grambazaar/bazarsearch/internal/repository/embcache"
	querylogrepo "github.com/grambazaar/bazarsearch/internal/repository/querylog"
	chiTransport "github.com/grambazaar/bazarsearch/internal/transport/chi"
	"github.com/grambazaar/bazarsearch/internal/transport/fake"
	openaiTransport "github.com/grambazaar/bazarsearch/internal/transport/openai"
	healthuc "github.com/grambazaar/bazarsearch/internal/usecase/health"
	listinguc "github.com/grambazaar/bazarsearch/internal/usecase/listing"
	searchuc "github.com/grambazaar/bazarsearch/internal/usecase/search"
	"github.com/grambazaar/bazarsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting bazarsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	// Product catalog — Postgres
	pg, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to open Postgres", zap.Error(err))
	}
	defer func() { _ = pg.Close() }()
	pg.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	pg.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	ctx := context.Background()

	catalog := catalogrepo.New(pg, cfg.Embedding.Dimensions)
	if err := catalog.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure catalog schema", zap.Error(err))
	}
	logger.Info("Connected to Postgres")

	// Redis — embedding cache and query log. Optional: without it the
	// service runs with no cache and no analytics.
	var store db.Store
	if len(cfg.Redis.Addrs) > 0 {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create Redis store", zap.Error(err))
		}
		defer redisStore.Close()

		readiness := time.Duration(cfg.Redis.ReadinessTimeout) * time.Second
		if err := redisStore.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to Redis")
	} else {
		logger.Warn("Redis not configured, running without embedding cache and query log")
	}

	// Register metrics explicitly (no init())
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	embedder := buildEmbedder(&cfg, store, logger)
	extractor := buildExtractor(&cfg, logger)

	// Use case services
	searchSvc := searchuc.New(catalog, embedder, logger)
	if store != nil {
		searchSvc = searchSvc.WithQueryLog(querylogrepo.New(store, cfg.Search.QueryLogMaxEntries))
	}
	listingSvc := listinguc.New(extractor, embedder, catalog, logger)

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(catalog, cachePinger, newEmbeddingHealthChecker(embedder))

	// HTTP server
	server := chiTransport.NewServer(searchSvc, listingSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: provider -> cache.
// The provider choice is made once here; nothing re-reads it per call.
func buildEmbedder(cfg *config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	var base domain.Embedder
	switch cfg.Embedding.Provider {
	case "fake":
		base = fake.NewEmbedder(cfg.Embedding.Dimensions)
	default:
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Retries:    uint(cfg.Embedding.Retries),
			Logger:     logger,
		})
	}

	if store == nil {
		return base
	}
	ttl := time.Duration(cfg.Embedding.CacheTTL) * time.Second
	return embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
}

func buildExtractor(cfg *config.Config, logger *zap.Logger) listing.Extractor {
	if cfg.Extractor.Provider == "fake" {
		return fake.NewExtractor()
	}
	return openaiTransport.NewExtractor(&openaiTransport.ExtractorConfig{
		APIKey:   cfg.Extractor.APIKey,
		BaseURL:  cfg.Extractor.BaseURL,
		Model:    cfg.Extractor.Model,
		Provider: cfg.Extractor.Provider,
		Retries:  uint(cfg.Embedding.Retries),
		Logger:   logger,
	})
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
