package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/scoring"
)

// SyncService ingests daily health metrics, maintains the daily ledger and
// recomputes the denormalized participant aggregates.
type SyncService struct {
	competitions CompetitionStore
	participants ParticipantStore
	ledger       LedgerStore
	standings    StandingsCache
	broadcaster  Broadcaster
	logger       *slog.Logger
	now          func() time.Time

	// inflight guards against a second concurrent sync for the same
	// (competition, user) pair. Scoped per key, not a global lock.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewSyncService creates a new sync service
func NewSyncService(
	competitions CompetitionStore,
	participants ParticipantStore,
	ledger LedgerStore,
	standings StandingsCache,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		competitions: competitions,
		participants: participants,
		ledger:       ledger,
		standings:    standings,
		broadcaster:  broadcaster,
		logger:       logger,
		now:          time.Now,
		inflight:     make(map[string]struct{}),
	}
}

func syncKey(competitionID, userID string) string {
	return competitionID + "|" + userID
}

// tryAcquire marks a (competition, user) sync in progress. Returns false if
// one is already running.
func (s *SyncService) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *SyncService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// IngestActivity scores and upserts a batch of daily samples for one
// participant, then runs exactly one standings recompute over the full
// competition window. The participant must already exist; metrics are never
// recorded for users who have not joined. If any day's upsert fails the
// whole sync fails and the recompute does not run, so the aggregate never
// reflects a half-written window.
func (s *SyncService) IngestActivity(ctx context.Context, competitionID, userID string, goals domain.RingGoals, samples []domain.DaySample) (*domain.ParticipantAggregate, error) {
	if len(samples) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	key := syncKey(competitionID, userID)
	if !s.tryAcquire(key) {
		return nil, domain.ErrSyncInProgress
	}
	defer s.release(key)

	competition, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.participants.GetParticipant(ctx, competitionID, userID); err != nil {
		return nil, err
	}

	if err := s.participants.UpdateParticipantGoals(ctx, competitionID, userID, goals); err != nil {
		return nil, err
	}

	syncedAt := s.now()
	records := make([]domain.DailyLedgerRecord, 0, len(samples))
	seen := make(map[string]int) // day key -> index, last sample for a day wins
	for _, sample := range samples {
		metrics := scoring.SanitizeMetrics(sample.Metrics)
		rec := domain.DailyLedgerRecord{
			CompetitionID:     competitionID,
			UserID:            userID,
			Day:               domain.NormalizeDay(sample.Date),
			MoveCalories:      int(math.Round(metrics.MoveCalories)),
			ExerciseMinutes:   int(math.Round(metrics.ExerciseMinutes)),
			StandHours:        int(math.Round(metrics.StandHours)),
			StepCount:         int(math.Round(metrics.StepCount)),
			DistanceMeters:    int(math.Round(metrics.DistanceMeters)),
			WorkoutsCompleted: metrics.WorkoutsCompleted,
			Points:            scoring.ComputePoints(competition.ScoringType, metrics, goals),
			SyncedAt:          syncedAt,
		}
		if idx, dup := seen[domain.DayKey(rec.Day)]; dup {
			records[idx] = rec
			continue
		}
		seen[domain.DayKey(rec.Day)] = len(records)
		records = append(records, rec)
	}

	if err := s.ledger.BatchUpsertLedgerRecords(ctx, records); err != nil {
		return nil, fmt.Errorf("writing ledger: %w", err)
	}

	agg, err := s.RecomputeStandings(ctx, competition, userID, goals)
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// RecomputeStandings rebuilds a participant's aggregate from scratch by
// summing every ledger row inside the competition's inclusive date range.
// Full-window recompute rather than delta accumulation: the aggregate
// self-heals from repeated or out-of-order syncs as long as each ledger
// upsert was atomic.
func (s *SyncService) RecomputeStandings(ctx context.Context, competition *domain.Competition, userID string, goals domain.RingGoals) (*domain.ParticipantAggregate, error) {
	records, err := s.ledger.GetLedgerRange(ctx, competition.ID, userID, competition.StartDate, competition.EndDate)
	if err != nil {
		return nil, fmt.Errorf("reading ledger window: %w", err)
	}

	agg := domain.ParticipantAggregate{
		DaysSynced: len(records),
		LastSyncAt: s.now(),
	}
	for _, rec := range records {
		agg.TotalPoints += rec.Points
		agg.MoveCalories += rec.MoveCalories
		agg.ExerciseMinutes += rec.ExerciseMinutes
		agg.StandHours += rec.StandHours
		agg.StepCount += rec.StepCount
	}

	// Averages divide by the number of days actually synced, not the span
	// length: three synced days of a week average over three.
	if days := float64(len(records)); days > 0 {
		agg.MoveProgress = progressAverage(float64(agg.MoveCalories), goals.MoveCalories, days)
		agg.ExerciseProgress = progressAverage(float64(agg.ExerciseMinutes), goals.ExerciseMinutes, days)
		agg.StandProgress = progressAverage(float64(agg.StandHours), goals.StandHours, days)
	}

	if err := s.participants.UpdateParticipantAggregate(ctx, competition.ID, userID, agg); err != nil {
		return nil, fmt.Errorf("writing aggregate: %w", err)
	}

	if s.standings != nil {
		if err := s.standings.SetPoints(ctx, competition.ID, userID, int64(agg.TotalPoints)); err != nil {
			// Cache drift self-heals on the next reconcile pass
			s.logger.Warn("failed to update standings cache",
				"competition_id", competition.ID,
				"user_id", userID,
				"error", err,
			)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastStandings(competition.ID, domain.StandingsEntry{
			UserID:      userID,
			TotalPoints: int64(agg.TotalPoints),
		})
	}

	return &agg, nil
}

// progressAverage is sum(metric) / (goal * dayCount), the mean daily ring
// completion over synced days. A zero goal yields zero.
func progressAverage(sum, goal, days float64) float64 {
	return scoring.Ratio(sum, goal*days)
}
