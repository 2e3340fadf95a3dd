package odds

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache guarda a cotação mais recente por partida, com TTL curto.
// A fonte de verdade continua sendo o Store.
type RedisCache struct {
	r   *redis.Client
	ttl time.Duration
}

func NewRedisCache(r *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{r: r, ttl: ttl}
}

func keyMatch(matchID string) string { return "odds:match:" + matchID }

func (c *RedisCache) Get(ctx context.Context, matchID string) (*Quote, bool, error) {
	b, err := c.r.Get(ctx, keyMatch(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var q Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, false, err
	}
	return &q, true, nil
}

func (c *RedisCache) Put(ctx context.Context, matchID string, q *Quote) error {
	b, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.r.Set(ctx, keyMatch(matchID), b, c.ttl).Err()
}
