package notify

import (
	"context"
	"encoding/json"

	"github.com/radieske/bet-core/internal/shared/kafka"
	"github.com/radieske/bet-core/pkg/contracts/events"
	"github.com/radieske/bet-core/pkg/contracts/topics"
)

// KafkaSink roteia cada evento para o tópico do seu domínio, chaveado por
// conta para preservar a ordem por usuário dentro da partição.
type KafkaSink struct {
	Bets    *kafka.Writer // bet_placed / bet_cancelled / bet_settled
	Balance *kafka.Writer // balance_changed
	Odds    *kafka.Writer // odds_quoted / odds_movement
}

func NewKafkaSink(brokers string) *KafkaSink {
	return &KafkaSink{
		Bets:    kafka.NewWriter(brokers, topics.BetEvents),
		Balance: kafka.NewWriter(brokers, topics.BalanceEvents),
		Odds:    kafka.NewWriter(brokers, topics.OddsEvents),
	}
}

func (s *KafkaSink) Emit(ctx context.Context, ev events.Envelope) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	w := s.writerFor(ev.Type)
	key := ev.AccountID
	if key == "" {
		key = ev.Type
	}
	return kafka.WriteJSON(ctx, w, key, b)
}

func (s *KafkaSink) writerFor(eventType string) *kafka.Writer {
	switch eventType {
	case events.TypeBalanceChanged:
		return s.Balance
	case events.TypeOddsQuoted, events.TypeOddsMovement:
		return s.Odds
	default:
		return s.Bets
	}
}

func (s *KafkaSink) Close() error {
	for _, w := range []*kafka.Writer{s.Bets, s.Balance, s.Odds} {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}
