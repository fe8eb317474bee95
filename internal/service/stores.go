package service

import (
	"context"
	"time"

	"github.com/fitcomp/internal/domain"
)

// CompetitionStore is the persistence surface for competitions and
// invitations, implemented by postgres.Repository.
type CompetitionStore interface {
	CreateCompetition(ctx context.Context, c *domain.Competition) error
	GetCompetition(ctx context.Context, competitionID string) (*domain.Competition, error)
	ListCompetitionsForUser(ctx context.Context, userID string) ([]domain.Competition, error)
	ListPublicCompetitions(ctx context.Context) ([]domain.Competition, error)
	UpdateCompetition(ctx context.Context, c *domain.Competition) error
	DeleteCompetition(ctx context.Context, competitionID string) error
	CreateInvitation(ctx context.Context, inv *domain.Invitation) error
	HasPendingInvitation(ctx context.Context, competitionID, inviteeID string) (bool, error)
	GetInvitation(ctx context.Context, invitationID string) (*domain.Invitation, error)
	UpdateInvitationStatus(ctx context.Context, invitationID, status string) error
}

// ParticipantStore is the persistence surface for participant rows.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, competitionID, userID string) error
	GetParticipant(ctx context.Context, competitionID, userID string) (*domain.Participant, error)
	ParticipantExists(ctx context.Context, competitionID, userID string) (bool, error)
	ListParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error)
	UpdateParticipantGoals(ctx context.Context, competitionID, userID string, goals domain.RingGoals) error
	UpdateParticipantAggregate(ctx context.Context, competitionID, userID string, agg domain.ParticipantAggregate) error
	DeleteParticipant(ctx context.Context, competitionID, userID string) error
}

// LedgerStore is the persistence surface for daily ledger rows.
type LedgerStore interface {
	BatchUpsertLedgerRecords(ctx context.Context, records []domain.DailyLedgerRecord) error
	GetLedgerRange(ctx context.Context, competitionID, userID string, start, end time.Time) ([]domain.DailyLedgerRecord, error)
}

// ProfileStore reads the authoritative server-side user profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// StandingsCache is the rank cache, implemented by redis.StandingsCache.
type StandingsCache interface {
	SetPoints(ctx context.Context, competitionID, userID string, totalPoints int64) error
	RemoveParticipant(ctx context.Context, competitionID, userID string) error
	DeleteStandings(ctx context.Context, competitionID string) error
}

// Broadcaster pushes live standings changes to connected clients. A nil
// broadcaster is allowed everywhere.
type Broadcaster interface {
	BroadcastStandings(competitionID string, entry domain.StandingsEntry)
}
