package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/bet-core/pkg/contracts/events"
)

// RedisSink publica o envelope num canal Pub/Sub; cada instância do bet-core
// assina o canal e repassa ao próprio hub WebSocket, então clientes conectados
// em qualquer instância recebem o evento.
type RedisSink struct {
	R       *redis.Client
	Channel string
}

func NewRedisSink(r *redis.Client, channel string) *RedisSink {
	return &RedisSink{R: r, Channel: channel}
}

func (s *RedisSink) Emit(ctx context.Context, ev events.Envelope) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.R.Publish(ctx, s.Channel, b).Err()
}
