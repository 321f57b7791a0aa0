// Package cache holds the stores of short-lived data.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/quizroom/core"
)

const revokedTokenPrefix = "revoked-token:"

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

type redisBlacklist struct {
	client *redis.Client
}

var _ core.TokenBlacklist = (*redisBlacklist)(nil)

func NewRedisBlacklist(client *redis.Client) core.TokenBlacklist {
	return &redisBlacklist{client: client}
}

func (bl *redisBlacklist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil // already expired
	}
	if err := bl.client.Set(ctx, revokedTokenPrefix+tokenID, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return nil
}

func (bl *redisBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := bl.client.Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking revoked token")
	}
	return n > 0, nil
}
