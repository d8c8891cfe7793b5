package leaderboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding lifetime scores.
const DefaultRedisKey = "alicorn:leaderboard"

type redisBoard struct {
	client *redis.Client
	key    string
}

// NewRedis returns a board backed by a Redis sorted set. An empty key
// selects DefaultRedisKey.
func NewRedis(client *redis.Client, key string) Board {
	if key == "" {
		key = DefaultRedisKey
	}
	return &redisBoard{client: client, key: key}
}

func member(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

// Record stores the account's lifetime score, replacing any previous value.
func (b *redisBoard) Record(ctx context.Context, accountID int64, score int) error {
	return b.client.ZAdd(ctx, b.key, redis.Z{
		Score:  float64(score),
		Member: member(accountID),
	}).Err()
}

func (b *redisBoard) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	results, err := b.client.ZRevRangeWithScores(ctx, b.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(results))
	for i, z := range results {
		m, _ := z.Member.(string)
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("leaderboard member %q: %w", m, err)
		}
		entries[i] = Entry{
			AccountID: id,
			Score:     int(z.Score),
		}
	}
	assignRanks(entries)
	return entries, nil
}

// Rank counts the members with a strictly higher score.
func (b *redisBoard) Rank(ctx context.Context, accountID int64) (int64, error) {
	score, err := b.client.ZScore(ctx, b.key, member(accountID)).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	above := "(" + strconv.FormatFloat(score, 'f', -1, 64)
	higher, err := b.client.ZCount(ctx, b.key, above, "+inf").Result()
	if err != nil {
		return -1, err
	}
	return higher + 1, nil
}
