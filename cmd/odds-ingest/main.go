package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/feed"
	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/internal/odds"
	"github.com/radieske/bet-core/internal/shared/cache"
	"github.com/radieske/bet-core/internal/shared/config"
	"github.com/radieske/bet-core/internal/shared/db"
	"github.com/radieske/bet-core/internal/shared/logger"
	"github.com/radieske/bet-core/internal/shared/metrics"
)

// odds-ingest consome o WebSocket do fornecedor e publica cada cotação no
// registro (histórico append-only + cache da mais recente).
func main() {
	cfg := config.Load()
	log, err := logger.New("odds-ingest", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	repo := ledger.NewPostgres(pg)
	matches := match.NewPostgres(pg)
	quoteCache := odds.NewRedisCache(rdb, cfg.OddsCacheTTL)
	registry := odds.NewRegistry(log, odds.NewPostgres(pg), matches, quoteCache, cfg.MinOdd, cfg.MoveThreshold, repo)

	ingested := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_quotes_total", Help: "cotações publicadas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_ingest_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(ingested, errorsBy)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	defer metricsSrv.Shutdown(context.Background())
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	client := &feed.Client{
		URL: cfg.SupplierWSURL,
		Log: log,
		Handler: func(ctx context.Context, matchID string, home, draw, away float64) error {
			_, err := registry.PublishQuote(ctx, matchID, home, draw, away)
			return err
		},
		OnQuote: func() { ingested.Inc() },
		OnError: func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	log.Info("odds-ingest started", zap.String("supplier", cfg.SupplierWSURL))
	client.Start(ctx)
}
