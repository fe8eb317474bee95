// Package scoring converts a single day's health metrics into competition
// points. Everything here is pure: no clock, no storage, no side effects.
package scoring

import (
	"math"

	"github.com/fitcomp/internal/domain"
)

// Points awarded per fully closed ring under the ring_close rule.
const ringCloseBonus = 100

// ComputePoints maps one day's metrics to a point value under the given
// scoring rule. The result is always a finite, non-negative integer: bad
// inputs (negative, NaN, Inf) are normalized to zero before scoring, and a
// zero goal yields zero progress rather than a division by zero.
func ComputePoints(scoringType domain.ScoringType, metrics domain.DayMetrics, goals domain.RingGoals) int {
	move := sanitize(metrics.MoveCalories)
	exercise := sanitize(metrics.ExerciseMinutes)
	stand := sanitize(metrics.StandHours)
	steps := sanitize(metrics.StepCount)

	switch scoringType {
	case domain.ScoringRingClose:
		points := 0
		if Ratio(move, goals.MoveCalories) >= 1.0 {
			points += ringCloseBonus
		}
		if Ratio(exercise, goals.ExerciseMinutes) >= 1.0 {
			points += ringCloseBonus
		}
		if Ratio(stand, goals.StandHours) >= 1.0 {
			points += ringCloseBonus
		}
		return points

	case domain.ScoringPercentage:
		sum := capped(Ratio(move, goals.MoveCalories))*100 +
			capped(Ratio(exercise, goals.ExerciseMinutes))*100 +
			capped(Ratio(stand, goals.StandHours))*100
		return int(math.Round(sum / 3))

	case domain.ScoringRawNumbers:
		return int(math.Round(move)) + int(math.Round(exercise)) + int(math.Round(stand))

	case domain.ScoringStepCount:
		return int(math.Round(steps))

	case domain.ScoringWorkout:
		// The workout point formula is undefined until product requirements
		// land. Scoring zero keeps ledgers consistent in the meantime.
		return 0
	}

	return 0
}

// Ratio returns metric/goal with a zero goal treated as zero progress.
func Ratio(metric, goal float64) float64 {
	goal = sanitize(goal)
	if goal == 0 {
		return 0
	}
	return sanitize(metric) / goal
}

// capped limits a ring ratio to full completion.
func capped(ratio float64) float64 {
	return math.Min(ratio, 1.0)
}

// sanitize clamps negative and non-finite values to zero so they can never
// reach a persisted points value.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// SanitizeMetrics returns a copy of m with every field normalized the same
// way ComputePoints normalizes its inputs, for storage in the daily ledger.
func SanitizeMetrics(m domain.DayMetrics) domain.DayMetrics {
	out := domain.DayMetrics{
		MoveCalories:    sanitize(m.MoveCalories),
		ExerciseMinutes: sanitize(m.ExerciseMinutes),
		StandHours:      sanitize(m.StandHours),
		StepCount:       sanitize(m.StepCount),
		DistanceMeters:  sanitize(m.DistanceMeters),
	}
	if m.WorkoutsCompleted > 0 {
		out.WorkoutsCompleted = m.WorkoutsCompleted
	}
	return out
}
