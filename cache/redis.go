// Package cache holds the Redis-backed leaderboard cache. Rankings are
// expensive aggregates and change only when a match is rescored, so they are
// cached per tournament and per private league and invalidated by the scoring
// pipeline.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafacaro85/polla-mundialista-core/repositories"
)

func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func leaderboardKey(tournamentID int, leagueID *int) string {
	if leagueID != nil {
		return fmt.Sprintf("leaderboard:t:%d:l:%d", tournamentID, *leagueID)
	}
	return fmt.Sprintf("leaderboard:t:%d", tournamentID)
}

// Get returns the cached ranking and whether it was present. Cache errors
// degrade to a miss; the caller recomputes from the store.
func (c *LeaderboardCache) Get(ctx context.Context, tournamentID int, leagueID *int) ([]repositories.LeaderboardRow, bool) {
	raw, err := c.client.Get(ctx, leaderboardKey(tournamentID, leagueID)).Bytes()
	if err != nil {
		return nil, false
	}

	var rows []repositories.LeaderboardRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (c *LeaderboardCache) Set(ctx context.Context, tournamentID int, leagueID *int, rows []repositories.LeaderboardRow) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}
	return c.client.Set(ctx, leaderboardKey(tournamentID, leagueID), raw, c.ttl).Err()
}

// Invalidate drops the tournament-wide ranking plus the given league-scoped
// rankings.
func (c *LeaderboardCache) Invalidate(ctx context.Context, tournamentID int, leagueIDs []int) error {
	keys := make([]string, 0, len(leagueIDs)+1)
	keys = append(keys, leaderboardKey(tournamentID, nil))
	for _, leagueID := range leagueIDs {
		id := leagueID
		keys = append(keys, leaderboardKey(tournamentID, &id))
	}
	return c.client.Del(ctx, keys...).Err()
}
