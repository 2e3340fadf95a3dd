package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/engine"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/internal/shared/kafka"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

// ResultConsumer consome resultados de partidas do Kafka, grava o placar
// final e liquida as apostas pending. Mensagem inválida ou de partida
// desconhecida vai para a DLQ; reprocessar um resultado já aplicado é no-op
// porque a liquidação é idempotente.
type ResultConsumer struct {
	Log     *zap.Logger
	Reader  *kafkago.Reader
	DLQ     *kafkago.Writer // opcional
	Matches match.Store
	Engine  *engine.Engine

	// Callbacks de métricas; nil é permitido.
	OnConsumed func()
	OnSettled  func(bets int)
	OnError    func(stage string)
}

// Run processa mensagens até o contexto encerrar.
func (c *ResultConsumer) Run(ctx context.Context) {
	c.Log.Info("result consumer started")
	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.Log.Info("result consumer stopped")
				return
			}
			c.Log.Warn("kafka read", zap.Error(err))
			c.fail("read")
			time.Sleep(time.Second)
			continue
		}
		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		var res events.MatchResult
		if err := json.Unmarshal(msg.Value, &res); err != nil || res.MatchID == "" {
			c.Log.Error("invalid match result", zap.Error(err))
			c.fail("decode")
			c.toDLQ(ctx, msg.Key, msg.Value)
			continue
		}

		if err := c.processOne(ctx, &res); err != nil {
			c.Log.Error("process match result",
				zap.String("matchId", res.MatchID),
				zap.Error(err))
			c.fail("process")
			if errors.Is(err, match.ErrNotFound) {
				c.toDLQ(ctx, msg.Key, msg.Value)
				continue
			}
			// Erro transitório (banco fora etc): backoff simples e segue;
			// o resultado chega de novo porque o placar não foi aplicado.
			time.Sleep(500 * time.Millisecond)
		}
	}
}

func (c *ResultConsumer) processOne(ctx context.Context, res *events.MatchResult) error {
	if _, err := c.Matches.UpdateScore(ctx, res.MatchID, res.HomeScore, res.AwayScore, match.StatusFinished); err != nil {
		return err
	}

	n, err := c.Engine.SettleMatch(ctx, res.MatchID)
	if err != nil {
		return err
	}
	if c.OnSettled != nil {
		c.OnSettled(n)
	}

	c.Log.Info("match result applied",
		zap.String("matchId", res.MatchID),
		zap.Int("homeScore", res.HomeScore),
		zap.Int("awayScore", res.AwayScore),
		zap.Int("settledBets", n))
	return nil
}

func (c *ResultConsumer) toDLQ(ctx context.Context, key, value []byte) {
	if c.DLQ == nil {
		return
	}
	if err := kafka.WriteJSON(ctx, c.DLQ, string(key), value); err != nil {
		c.Log.Error("dlq write failed", zap.Error(err))
		c.fail("dlq")
	}
}

func (c *ResultConsumer) fail(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}
