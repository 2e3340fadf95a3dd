package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/engine"
	"github.com/radieske/bet-core/internal/feed"
	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/internal/shared/config"
	"github.com/radieske/bet-core/internal/shared/db"
	"github.com/radieske/bet-core/internal/shared/kafka"
	"github.com/radieske/bet-core/internal/shared/logger"
	"github.com/radieske/bet-core/internal/shared/metrics"
)

// settlement-worker consome o tópico match_results, grava o placar final e
// liquida as apostas pending. Pode rodar em paralelo com o bet-core: a
// idempotência da liquidação garante no máximo um crédito por aposta.
func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
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

	repo := ledger.NewPostgres(pg)
	matches := match.NewPostgres(pg)

	policy := engine.Policy{
		MinStakeCents: cfg.MinStakeCents,
		MaxStakeCents: cfg.MaxStakeCents,
		MinOdd:        cfg.MinOdd,
		BettingWindow: cfg.BettingWindow,
	}
	eng := engine.New(log, repo, matches, policy)

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMatchResults, "settlement-worker")
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMatchResultsDLQ)
	defer dlq.Close()

	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_results_consumed_total", Help: "resultados consumidos"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_bets_settled_total", Help: "apostas liquidadas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, settled, errorsBy)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})
	defer metricsSrv.Shutdown(context.Background())
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	consumer := &feed.ResultConsumer{
		Log:        log,
		Reader:     reader,
		DLQ:        dlq,
		Matches:    matches,
		Engine:     eng,
		OnConsumed: func() { consumed.Inc() },
		OnSettled:  func(n int) { settled.Add(float64(n)) },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	log.Info("settlement-worker started", zap.String("topic", cfg.TopicMatchResults))
	consumer.Run(ctx)
}
