package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/engine"
	"github.com/radieske/bet-core/internal/httpapi"
	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/internal/notify"
	"github.com/radieske/bet-core/internal/odds"
	"github.com/radieske/bet-core/internal/outbox"
	"github.com/radieske/bet-core/internal/shared/cache"
	"github.com/radieske/bet-core/internal/shared/config"
	"github.com/radieske/bet-core/internal/shared/db"
	"github.com/radieske/bet-core/internal/shared/logger"
	"github.com/radieske/bet-core/internal/shared/metrics"
	"github.com/radieske/bet-core/internal/wallet"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("bet-core", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de cotações + pub/sub do WS)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// deps
	repo := ledger.NewPostgres(pg)
	matches := match.NewPostgres(pg)
	quoteCache := odds.NewRedisCache(rdb, cfg.OddsCacheTTL)
	registry := odds.NewRegistry(log, odds.NewPostgres(pg), matches, quoteCache, cfg.MinOdd, cfg.MoveThreshold, repo)

	policy := engine.Policy{
		MinStakeCents: cfg.MinStakeCents,
		MaxStakeCents: cfg.MaxStakeCents,
		MinOdd:        cfg.MinOdd,
		BettingWindow: cfg.BettingWindow,
	}
	eng := engine.New(log, repo, matches, policy)

	wsvc := wallet.NewService(log, repo)

	// Hub WS local + assinatura do canal compartilhado
	hub := notify.NewHub(func(r *http.Request) bool { return true })
	notify.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)

	// Outbox: entrega para Kafka (consumidores externos) e Redis Pub/Sub
	// (clientes WS em qualquer instância).
	kafkaSink := notify.NewKafkaSink(cfg.KafkaBrokers)
	defer kafkaSink.Close()
	sink := &notify.Multi{Sinks: []notify.Sink{
		kafkaSink,
		notify.NewRedisSink(rdb, cfg.RedisPubSubChannel),
	}}

	fetched := prometheus.NewCounter(prometheus.CounterOpts{Name: "outbox_fetched_total", Help: "registros buscados do outbox"})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{Name: "outbox_delivered_total", Help: "eventos entregues"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "outbox_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(fetched, delivered, errorsBy)

	dispatcher := &outbox.Dispatcher{
		Log:         log,
		Repo:        repo,
		Sink:        sink,
		Interval:    cfg.OutboxInterval,
		BatchSize:   cfg.OutboxBatchSize,
		OnFetched:   func(n int) { fetched.Add(float64(n)) },
		OnDelivered: func() { delivered.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}
	go dispatcher.Run(ctx)

	// HTTP público
	api := &httpapi.API{
		Log:           log,
		Engine:        eng,
		Wallet:        wsvc,
		Odds:          registry,
		Matches:       matches,
		Repo:          repo,
		Hub:           hub,
		MoveThreshold: cfg.MoveThreshold,
	}
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	go func() {
		<-ctx.Done()
		_ = apiSrv.Shutdown(context.Background())
		_ = metricsSrv.Shutdown(context.Background())
	}()

	log.Info("bet-core listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server", zap.Error(err))
	}
}
