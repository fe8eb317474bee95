package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fitcomp/internal/domain"
)

var stdGoals = domain.RingGoals{
	MoveCalories:    500,
	ExerciseMinutes: 30,
	StandHours:      12,
}

func TestComputePointsRingClose(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.DayMetrics
		goals   domain.RingGoals
		want    int
	}{
		{
			name:    "all rings closed",
			metrics: domain.DayMetrics{MoveCalories: 500, ExerciseMinutes: 30, StandHours: 12},
			goals:   stdGoals,
			want:    300,
		},
		{
			name:    "exactly at goal closes the ring",
			metrics: domain.DayMetrics{MoveCalories: 500},
			goals:   stdGoals,
			want:    100,
		},
		{
			name:    "just under goal does not close",
			metrics: domain.DayMetrics{MoveCalories: 499.99},
			goals:   stdGoals,
			want:    0,
		},
		{
			name:    "two of three rings",
			metrics: domain.DayMetrics{MoveCalories: 600, ExerciseMinutes: 45, StandHours: 10},
			goals:   stdGoals,
			want:    200,
		},
		{
			name:    "overshoot earns no extra",
			metrics: domain.DayMetrics{MoveCalories: 5000, ExerciseMinutes: 300, StandHours: 24},
			goals:   stdGoals,
			want:    300,
		},
		{
			name:    "zero goals close nothing",
			metrics: domain.DayMetrics{MoveCalories: 300, ExerciseMinutes: 60, StandHours: 14},
			goals:   domain.RingGoals{},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePoints(domain.ScoringRingClose, tt.metrics, tt.goals)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePointsPercentage(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.DayMetrics
		goals   domain.RingGoals
		want    int
	}{
		{
			name:    "half of every ring",
			metrics: domain.DayMetrics{MoveCalories: 250, ExerciseMinutes: 15, StandHours: 6},
			goals:   stdGoals,
			want:    50,
		},
		{
			name:    "each ring capped at full completion",
			metrics: domain.DayMetrics{MoveCalories: 1000, ExerciseMinutes: 60, StandHours: 24},
			goals:   stdGoals,
			want:    100,
		},
		{
			name:    "one ring double counts as full",
			metrics: domain.DayMetrics{MoveCalories: 1000},
			goals:   stdGoals,
			want:    33,
		},
		{
			name:    "zero goal contributes zero not panic",
			metrics: domain.DayMetrics{MoveCalories: 500, ExerciseMinutes: 30, StandHours: 12},
			goals:   domain.RingGoals{MoveCalories: 500},
			want:    33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePoints(domain.ScoringPercentage, tt.metrics, tt.goals)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputePointsRawNumbers(t *testing.T) {
	metrics := domain.DayMetrics{MoveCalories: 450.4, ExerciseMinutes: 35.6, StandHours: 11}
	got := ComputePoints(domain.ScoringRawNumbers, metrics, stdGoals)
	assert.Equal(t, 450+36+11, got)
}

func TestComputePointsStepCount(t *testing.T) {
	metrics := domain.DayMetrics{StepCount: 10482, MoveCalories: 900}
	got := ComputePoints(domain.ScoringStepCount, metrics, stdGoals)
	assert.Equal(t, 10482, got)
}

func TestComputePointsWorkoutScoresZero(t *testing.T) {
	metrics := domain.DayMetrics{WorkoutsCompleted: 4, MoveCalories: 900}
	got := ComputePoints(domain.ScoringWorkout, metrics, stdGoals)
	assert.Equal(t, 0, got)
}

func TestComputePointsUnknownTypeScoresZero(t *testing.T) {
	got := ComputePoints(domain.ScoringType("bogus"), domain.DayMetrics{MoveCalories: 900}, stdGoals)
	assert.Equal(t, 0, got)
}

func TestComputePointsSanitizesBadInput(t *testing.T) {
	tests := []struct {
		name    string
		metrics domain.DayMetrics
	}{
		{"negative values", domain.DayMetrics{MoveCalories: -500, ExerciseMinutes: -30, StandHours: -12}},
		{"NaN values", domain.DayMetrics{MoveCalories: math.NaN(), ExerciseMinutes: math.NaN()}},
		{"infinite values", domain.DayMetrics{MoveCalories: math.Inf(1), StandHours: math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, st := range []domain.ScoringType{
				domain.ScoringRingClose,
				domain.ScoringPercentage,
				domain.ScoringRawNumbers,
				domain.ScoringStepCount,
			} {
				got := ComputePoints(st, tt.metrics, stdGoals)
				assert.Equal(t, 0, got, "scoring type %s", st)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(300, 0))
	assert.Equal(t, 0.0, Ratio(300, math.NaN()))
	assert.Equal(t, 0.5, Ratio(250, 500))
	assert.Equal(t, 2.0, Ratio(1000, 500))
	assert.Equal(t, 0.0, Ratio(-250, 500))
}

func TestSanitizeMetrics(t *testing.T) {
	in := domain.DayMetrics{
		MoveCalories:      -10,
		ExerciseMinutes:   math.NaN(),
		StandHours:        math.Inf(1),
		StepCount:         8000,
		DistanceMeters:    -1,
		WorkoutsCompleted: -3,
	}
	out := SanitizeMetrics(in)
	assert.Equal(t, 0.0, out.MoveCalories)
	assert.Equal(t, 0.0, out.ExerciseMinutes)
	assert.Equal(t, 0.0, out.StandHours)
	assert.Equal(t, 8000.0, out.StepCount)
	assert.Equal(t, 0.0, out.DistanceMeters)
	assert.Equal(t, 0, out.WorkoutsCompleted)
}
