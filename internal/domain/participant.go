package domain

import "time"

// RingGoals are a user's daily activity ring targets. They arrive with each
// sync from the health provider and are stored on the participant row so the
// aggregator can compute progress averages.
type RingGoals struct {
	MoveCalories    float64 `json:"move_calories"`
	ExerciseMinutes float64 `json:"exercise_minutes"`
	StandHours      float64 `json:"stand_hours"`
}

// DayMetrics are a single day's raw health metrics for one user.
type DayMetrics struct {
	MoveCalories      float64 `json:"move_calories"`
	ExerciseMinutes   float64 `json:"exercise_minutes"`
	StandHours        float64 `json:"stand_hours"`
	StepCount         float64 `json:"step_count"`
	DistanceMeters    float64 `json:"distance_meters"`
	WorkoutsCompleted int     `json:"workouts_completed"`
}

// DaySample pairs a calendar day with its metrics, as yielded by the health
// provider. The timestamp may carry time-of-day precision; it is normalized
// before it becomes a ledger key.
type DaySample struct {
	Date    time.Time  `json:"date"`
	Metrics DayMetrics `json:"metrics"`
}

// DailyLedgerRecord is one user's scored metrics for one calendar day of one
// competition. Natural key: (competition_id, user_id, day). Re-syncing the
// same day overwrites the row, never duplicates it.
type DailyLedgerRecord struct {
	CompetitionID     string    `json:"competition_id"`
	UserID            string    `json:"user_id"`
	Day               time.Time `json:"day"`
	MoveCalories      int       `json:"move_calories"`
	ExerciseMinutes   int       `json:"exercise_minutes"`
	StandHours        int       `json:"stand_hours"`
	StepCount         int       `json:"step_count"`
	DistanceMeters    int       `json:"distance_meters"`
	WorkoutsCompleted int       `json:"workouts_completed"`
	Points            int       `json:"points"`
	SyncedAt          time.Time `json:"synced_at"`
}

// Participant is the denormalized per-competition aggregate for one user.
// The aggregate fields are owned by the standings recompute and are never
// incremented in place.
type Participant struct {
	CompetitionID    string     `json:"competition_id"`
	UserID           string     `json:"user_id"`
	TotalPoints      int        `json:"total_points"`
	MoveCalories     int        `json:"move_calories"`
	ExerciseMinutes  int        `json:"exercise_minutes"`
	StandHours       int        `json:"stand_hours"`
	StepCount        int        `json:"step_count"`
	MoveProgress     float64    `json:"move_progress"`
	ExerciseProgress float64    `json:"exercise_progress"`
	StandProgress    float64    `json:"stand_progress"`
	Goals            RingGoals  `json:"goals"`
	JoinedAt         time.Time  `json:"joined_at"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
}

// ParticipantAggregate is the result of one standings recompute pass.
type ParticipantAggregate struct {
	TotalPoints      int       `json:"total_points"`
	MoveCalories     int       `json:"move_calories"`
	ExerciseMinutes  int       `json:"exercise_minutes"`
	StandHours       int       `json:"stand_hours"`
	StepCount        int       `json:"step_count"`
	MoveProgress     float64   `json:"move_progress"`
	ExerciseProgress float64   `json:"exercise_progress"`
	StandProgress    float64   `json:"stand_progress"`
	DaysSynced       int       `json:"days_synced"`
	LastSyncAt       time.Time `json:"last_sync_at"`
}

// StandingsEntry is one ranked row of a competition leaderboard.
type StandingsEntry struct {
	Rank        int64  `json:"rank"`
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
}

// Profile is the authoritative server-side user record. The subscription
// tier on it is the only tier the leave gate trusts.
type Profile struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// Tier is a user's subscription level.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
	TierElite Tier = "elite"
)

// Paid reports whether the tier skips the leave fee.
func (t Tier) Paid() bool {
	return t == TierPro || t == TierElite
}
