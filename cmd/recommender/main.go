// Command recommender starts the CineMatch recommendation service.
//
// It builds (or restores) the similarity model from the configured catalog,
// then serves recommendations over HTTP at GET /api/v1/recommend and, when
// rpc.port is set, over JSON-RPC on TCP. Redis result caching, poster lookup
// and Kafka analytics are optional and degrade gracefully when unavailable.
//
// Usage:
//
//	go run ./cmd/recommender [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/bootstrap"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/poster"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/cache"
	"github.com/Adithya-Monish-Kumar-K/cinematch/internal/recommender/handler"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/cinematch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/cinematch/pkg/rpc"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting recommender service",
		"port", cfg.Server.Port,
		"catalog_source", cfg.Catalog.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	mdl, err := bootstrap.LoadModel(ctx, cfg, db)
	if err != nil {
		slog.Error("failed to load model", "error", err)
		os.Exit(1)
	}
	info := mdl.Info()
	m.ObserveModel(info.Items, info.VocabularySize, info.Stages)
	rec := recommender.New(mdl, recommender.OptionsFromConfig(cfg))

	opts := handler.Options{
		FallbackPosterURL: cfg.Poster.FallbackURL,
		Metrics:           m,
		DefaultK:          cfg.Recommend.DefaultK,
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts.Cache = cache.New(redisClient, mdl.Fingerprint(), cache.Options{
				TTL:      cfg.Redis.CacheTTL,
				FoldCase: cfg.Resolver.FoldCase,
			})
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Poster.Enabled {
		opts.Posters = poster.New(cfg.Poster, poster.WithMetrics(m))
		slog.Info("poster lookup enabled", "base_url", cfg.Poster.BaseURL)
	}

	mux := http.NewServeMux()

	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorOptions{
			BufferSize: cfg.Analytics.BufferSize,
			Metrics:    m,
		})
		collector.Start(ctx)
		defer collector.Close()

		aggregator := analytics.NewAggregator()
		opts.Tracker = analytics.Trackers{collector, aggregator}
		mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
		slog.Info("analytics enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	checker := health.NewChecker()
	checker.Register("model", health.Ready(func() bool { return mdl.Len() > 0 }, "catalog is empty"))
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}
	if cfg.Analytics.Enabled {
		checker.Register("kafka", health.Ping(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}, health.StatusDegraded))
	}
	if db != nil {
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDegraded))
	}

	h := handler.New(rec, opts)
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if len(cfg.Server.CORSOrigins) > 0 {
		mws = append(mws, middleware.CORS(cfg.Server.CORSOrigins, 600))
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		limiter.StartCleanup(cfg.RateLimit.Window)
		defer limiter.Stop()
		mws = append(mws, middleware.RateLimit(limiter, m))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var rpcServer *rpc.Server
	if cfg.RPC.Port > 0 {
		rpcServer = rpc.NewServer()
		handler.RegisterRPC(rpcServer, rec)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.RPC.Port)
			slog.Info("rpc server listening", "addr", addr, "methods", rpcServer.MethodCount())
			if err := rpcServer.ListenAndServe(addr); err != nil && !errors.Is(err, rpc.ErrServerClosed) {
				slog.Error("rpc server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if rpcServer != nil {
			rpcServer.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("recommender service listening", "addr", server.Addr, "items", info.Items)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("recommender service stopped")
}
