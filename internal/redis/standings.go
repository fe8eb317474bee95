package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
)

// StandingsCache provides Redis-based competition standings. Postgres stays
// canonical; the ZSET per competition exists for cheap rank reads and is
// rebuilt by the reconcile worker whenever it drifts.
type StandingsCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStandingsCache creates a new Redis standings cache
func NewStandingsCache(cfg *config.RedisConfig, logger *slog.Logger) (*StandingsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &StandingsCache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (s *StandingsCache) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *StandingsCache) Client() *redis.Client {
	return s.client
}

// standingsKey returns the Redis key for a competition's standings ZSET
func (s *StandingsCache) standingsKey(competitionID string) string {
	return fmt.Sprintf("competition:%s:standings", competitionID)
}

// SetPoints writes a participant's total points into the standings set
func (s *StandingsCache) SetPoints(ctx context.Context, competitionID, userID string, totalPoints int64) error {
	key := s.standingsKey(competitionID)
	err := s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(totalPoints),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("setting points: %w", err)
	}
	return nil
}

// RemoveParticipant evicts a user from the standings set
func (s *StandingsCache) RemoveParticipant(ctx context.Context, competitionID, userID string) error {
	key := s.standingsKey(competitionID)
	if err := s.client.ZRem(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("removing participant: %w", err)
	}
	return nil
}

// GetTopN returns the top N participants by total points
func (s *StandingsCache) GetTopN(ctx context.Context, competitionID string, n int) ([]domain.StandingsEntry, error) {
	key := s.standingsKey(competitionID)
	results, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top n: %w", err)
	}

	entries := make([]domain.StandingsEntry, len(results))
	for i, result := range results {
		entries[i] = domain.StandingsEntry{
			Rank:        int64(i + 1),
			UserID:      result.Member.(string),
			TotalPoints: int64(result.Score),
		}
	}
	return entries, nil
}

// GetRank returns a participant's rank and points
func (s *StandingsCache) GetRank(ctx context.Context, competitionID, userID string) (*domain.StandingsEntry, error) {
	key := s.standingsKey(competitionID)

	pipe := s.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, userID)
	scoreCmd := pipe.ZScore(ctx, key, userID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("getting rank: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}

	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &domain.StandingsEntry{
		Rank:        rank + 1, // 0-indexed to 1-indexed
		UserID:      userID,
		TotalPoints: int64(score),
	}, nil
}

// GetCount returns the number of ranked participants
func (s *StandingsCache) GetCount(ctx context.Context, competitionID string) (int64, error) {
	count, err := s.client.ZCard(ctx, s.standingsKey(competitionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// RebuildStandings atomically replaces a competition's standings set from
// canonical totals, using a pipeline.
func (s *StandingsCache) RebuildStandings(ctx context.Context, competitionID string, totals map[string]int64) error {
	key := s.standingsKey(competitionID)

	pipe := s.client.Pipeline()
	pipe.Del(ctx, key)
	for userID, points := range totals {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(points),
			Member: userID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding standings: %w", err)
	}
	return nil
}

// DeleteStandings removes a competition's standings set entirely
func (s *StandingsCache) DeleteStandings(ctx context.Context, competitionID string) error {
	if err := s.client.Del(ctx, s.standingsKey(competitionID)).Err(); err != nil {
		return fmt.Errorf("deleting standings: %w", err)
	}
	return nil
}
