package domain

import (
	"time"
)

// CompetitionType classifies a competition by its date span. It is derived
// from the dates, never chosen by the user.
type CompetitionType string

const (
	TypeWeekend CompetitionType = "weekend"
	TypeWeekly  CompetitionType = "weekly"
	TypeMonthly CompetitionType = "monthly"
	TypeCustom  CompetitionType = "custom"
)

// CompetitionStatus tracks where a competition sits in its lifecycle.
// Transitions are monotonic: upcoming -> active -> completed.
type CompetitionStatus string

const (
	StatusUpcoming  CompetitionStatus = "upcoming"
	StatusActive    CompetitionStatus = "active"
	StatusCompleted CompetitionStatus = "completed"
)

// ScoringType selects the rule used to convert a day's metrics into points.
type ScoringType string

const (
	ScoringRingClose  ScoringType = "ring_close"
	ScoringPercentage ScoringType = "percentage"
	ScoringRawNumbers ScoringType = "raw_numbers"
	ScoringStepCount  ScoringType = "step_count"
	ScoringWorkout    ScoringType = "workout"
)

// Valid reports whether t is a known scoring type.
func (t ScoringType) Valid() bool {
	switch t {
	case ScoringRingClose, ScoringPercentage, ScoringRawNumbers, ScoringStepCount, ScoringWorkout:
		return true
	}
	return false
}

// WorkoutConfig holds the optional parameters for the workout scoring type.
// The point formula for workouts is not defined yet; the fields are carried
// so existing competitions round-trip.
type WorkoutConfig struct {
	WorkoutTypes []string `json:"workout_types,omitempty"`
	Metric       string   `json:"metric,omitempty"`
}

// Competition is the canonical competition record.
type Competition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Type        CompetitionType   `json:"type"`
	Status      CompetitionStatus `json:"status"`
	ScoringType ScoringType       `json:"scoring_type"`
	Workout     *WorkoutConfig    `json:"scoring_config,omitempty"`
	IsPublic    bool              `json:"is_public"`
	CreatorID   string            `json:"creator_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NormalizeDay strips the time-of-day component. Health-provider timestamps
// arrive with full datetime precision while ledger keys are date-only, so
// every date comparison in the system goes through this first.
func NormalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats a timestamp as the date-only ledger key.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DurationDays returns the inclusive day count of [start, end].
func DurationDays(start, end time.Time) int {
	start = NormalizeDay(start)
	end = NormalizeDay(end)
	return int(end.Sub(start).Hours()/24) + 1
}

// ClassifyType derives the competition type from its date span.
// weekendStart is the weekday a two-day competition must begin on to count
// as a weekend competition.
func ClassifyType(start, end time.Time, weekendStart time.Weekday) CompetitionType {
	days := DurationDays(start, end)
	switch {
	case days == 2 && NormalizeDay(start).Weekday() == weekendStart:
		return TypeWeekend
	case days == 7:
		return TypeWeekly
	case days >= 28 && days <= 31:
		return TypeMonthly
	default:
		return TypeCustom
	}
}

// DeriveStatus computes the status for a competition as of today.
func DeriveStatus(start, end, today time.Time) CompetitionStatus {
	start = NormalizeDay(start)
	end = NormalizeDay(end)
	today = NormalizeDay(today)
	switch {
	case today.After(end):
		return StatusCompleted
	case !start.After(today):
		return StatusActive
	default:
		return StatusUpcoming
	}
}

// EditableField names a competition field that may be mutated after creation.
type EditableField string

const (
	FieldName        EditableField = "name"
	FieldDescription EditableField = "description"
	FieldStartDate   EditableField = "start_date"
	FieldEndDate     EditableField = "end_date"
	FieldScoringType EditableField = "scoring_type"
	FieldVisibility  EditableField = "is_public"
)

// FieldEditable reports whether a field may change given the current status.
// Upcoming competitions are fully mutable; once active, the scoring rule and
// start date are locked; completed competitions are frozen. Enforced at the
// service layer, never only in a client.
func FieldEditable(status CompetitionStatus, field EditableField) bool {
	switch status {
	case StatusUpcoming:
		return true
	case StatusActive:
		switch field {
		case FieldName, FieldDescription, FieldEndDate, FieldVisibility:
			return true
		}
		return false
	default:
		return false
	}
}

// Invitation is a pending invite to join a competition.
type Invitation struct {
	ID            string    `json:"id"`
	CompetitionID string    `json:"competition_id"`
	InviterID     string    `json:"inviter_id"`
	InviteeID     string    `json:"invitee_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Invitation statuses.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
)
