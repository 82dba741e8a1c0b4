package rating

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "user:rating:"

// RedisStore keeps one rating per username in Redis. Unknown players are
// installed with the default rating on first contact.
type RedisStore struct {
	rdb           *redis.Client
	defaultRating int64
	logger        *zap.Logger
}

// NewRedisStore connects to the given Redis URL and verifies it with a ping.
func NewRedisStore(url string, defaultRating int64, logger *zap.Logger) (*RedisStore, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis url required for rating store")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, defaultRating: defaultRating, logger: logger}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Lookup returns the stored rating, installing the default for unknown
// players.
func (s *RedisStore) Lookup(ctx context.Context, username string) (int64, error) {
	if err := s.ensure(ctx, username); err != nil {
		return 0, err
	}
	return s.rdb.Get(ctx, ratingKey(username)).Int64()
}

// Adjust moves delta points from the loser to the winner atomically.
func (s *RedisStore) Adjust(ctx context.Context, winner, loser string, delta int64) (int64, int64, error) {
	if err := s.ensure(ctx, winner); err != nil {
		return 0, 0, err
	}
	if err := s.ensure(ctx, loser); err != nil {
		return 0, 0, err
	}

	pipe := s.rdb.TxPipeline()
	w := pipe.IncrBy(ctx, ratingKey(winner), delta)
	l := pipe.DecrBy(ctx, ratingKey(loser), delta)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	s.logger.Info("ratings adjusted",
		zap.String("winner", winner),
		zap.Int64("winner_rating", w.Val()),
		zap.String("loser", loser),
		zap.Int64("loser_rating", l.Val()),
	)
	return w.Val(), l.Val(), nil
}

func (s *RedisStore) ensure(ctx context.Context, username string) error {
	return s.rdb.SetNX(ctx, ratingKey(username), s.defaultRating, 0).Err()
}

func ratingKey(username string) string {
	return keyPrefix + strings.TrimSpace(username)
}
