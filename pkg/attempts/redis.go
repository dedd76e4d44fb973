// pkg/attempts/redis.go
package attempts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "oauth:state:"

type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Create(ctx context.Context, nonce string, a Attempt, ttl time.Duration) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyPrefix+nonce, b, ttl).Err()
}

// Consume uses GETDEL so two racing callbacks cannot both see the nonce.
func (s *redisStore) Consume(ctx context.Context, nonce string) (Attempt, error) {
	raw, err := s.rdb.GetDel(ctx, keyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}
	var a Attempt
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}
