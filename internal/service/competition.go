package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/notify"
)

// CompetitionService manages the competition lifecycle: creation, edits,
// invitations, joins and deletion.
type CompetitionService struct {
	competitions CompetitionStore
	participants ParticipantStore
	standings    StandingsCache
	dispatcher   notify.Dispatcher
	config       *config.CompetitionConfig
	logger       *slog.Logger
	now          func() time.Time
}

// NewCompetitionService creates a new competition service
func NewCompetitionService(
	competitions CompetitionStore,
	participants ParticipantStore,
	standings StandingsCache,
	dispatcher notify.Dispatcher,
	cfg *config.CompetitionConfig,
	logger *slog.Logger,
) *CompetitionService {
	return &CompetitionService{
		competitions: competitions,
		participants: participants,
		standings:    standings,
		dispatcher:   dispatcher,
		config:       cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateCompetitionRequest carries the user-supplied competition fields.
// Type and status are derived, never accepted from the caller.
type CreateCompetitionRequest struct {
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	StartDate     time.Time             `json:"start_date"`
	EndDate       time.Time             `json:"end_date"`
	ScoringType   domain.ScoringType    `json:"scoring_type"`
	WorkoutConfig *domain.WorkoutConfig `json:"scoring_config,omitempty"`
	IsPublic      bool                  `json:"is_public"`
}

// Create validates the request, derives type and status, stores the
// competition and auto-joins the creator.
func (s *CompetitionService) Create(ctx context.Context, creatorID string, req CreateCompetitionRequest) (*domain.Competition, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrInvalidRequest
	}
	if !req.ScoringType.Valid() {
		return nil, domain.ErrInvalidScoringType
	}

	start := domain.NormalizeDay(req.StartDate)
	end := domain.NormalizeDay(req.EndDate)
	if !end.After(start) {
		return nil, domain.ErrInvalidDates
	}

	today := domain.NormalizeDay(s.now())
	status := domain.StatusUpcoming
	if !start.After(today) {
		status = domain.StatusActive
	}

	c := &domain.Competition{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Type:        domain.ClassifyType(start, end, s.config.WeekendStartDay()),
		Status:      status,
		ScoringType: req.ScoringType,
		Workout:     req.WorkoutConfig,
		IsPublic:    req.IsPublic,
		CreatorID:   creatorID,
	}

	if err := s.competitions.CreateCompetition(ctx, c); err != nil {
		return nil, fmt.Errorf("creating competition: %w", err)
	}

	// Creator is always the first participant
	if err := s.participants.CreateParticipant(ctx, c.ID, creatorID); err != nil {
		return nil, fmt.Errorf("adding creator as participant: %w", err)
	}

	return c, nil
}

// Get returns a competition by id
func (s *CompetitionService) Get(ctx context.Context, competitionID string) (*domain.Competition, error) {
	return s.competitions.GetCompetition(ctx, competitionID)
}

// ListForUser returns the competitions a user participates in
func (s *CompetitionService) ListForUser(ctx context.Context, userID string) ([]domain.Competition, error) {
	return s.competitions.ListCompetitionsForUser(ctx, userID)
}

// ListPublic returns joinable public competitions
func (s *CompetitionService) ListPublic(ctx context.Context) ([]domain.Competition, error) {
	return s.competitions.ListPublicCompetitions(ctx)
}

// UpdateCompetitionRequest carries optional field updates; nil means leave
// the field alone.
type UpdateCompetitionRequest struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	StartDate   *time.Time          `json:"start_date,omitempty"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
	ScoringType *domain.ScoringType `json:"scoring_type,omitempty"`
	IsPublic    *bool               `json:"is_public,omitempty"`
}

// Update applies field changes under the status-dependent editability
// matrix. The matrix is enforced here regardless of what any client surface
// allowed; a disabled affordance is not a security boundary.
func (s *CompetitionService) Update(ctx context.Context, competitionID, userID string, req UpdateCompetitionRequest) (*domain.Competition, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if c.CreatorID != userID {
		return nil, domain.ErrNotCreator
	}

	check := func(field domain.EditableField) error {
		if !domain.FieldEditable(c.Status, field) {
			return fmt.Errorf("%w: %s", domain.ErrFieldLocked, field)
		}
		return nil
	}

	if req.Name != nil {
		if err := check(domain.FieldName); err != nil {
			return nil, err
		}
		if strings.TrimSpace(*req.Name) == "" {
			return nil, domain.ErrInvalidRequest
		}
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		if err := check(domain.FieldDescription); err != nil {
			return nil, err
		}
		c.Description = *req.Description
	}
	if req.StartDate != nil {
		if err := check(domain.FieldStartDate); err != nil {
			return nil, err
		}
		c.StartDate = domain.NormalizeDay(*req.StartDate)
	}
	if req.EndDate != nil {
		if err := check(domain.FieldEndDate); err != nil {
			return nil, err
		}
		c.EndDate = domain.NormalizeDay(*req.EndDate)
	}
	if req.ScoringType != nil {
		if err := check(domain.FieldScoringType); err != nil {
			return nil, err
		}
		if !req.ScoringType.Valid() {
			return nil, domain.ErrInvalidScoringType
		}
		c.ScoringType = *req.ScoringType
	}
	if req.IsPublic != nil {
		if err := check(domain.FieldVisibility); err != nil {
			return nil, err
		}
		c.IsPublic = *req.IsPublic
	}

	if !c.EndDate.After(c.StartDate) {
		return nil, domain.ErrInvalidDates
	}

	// Date edits can change the derived classification
	c.Type = domain.ClassifyType(c.StartDate, c.EndDate, s.config.WeekendStartDay())

	if err := s.competitions.UpdateCompetition(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a competition entirely. Creator only; participants and
// ledger rows cascade, the standings cache entry is dropped, and remaining
// participants are told.
func (s *CompetitionService) Delete(ctx context.Context, competitionID, userID string) error {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return err
	}
	if c.CreatorID != userID {
		return domain.ErrNotCreator
	}

	participants, err := s.participants.ListParticipants(ctx, competitionID)
	if err != nil {
		s.logger.Warn("failed to list participants before delete", "competition_id", competitionID, "error", err)
		participants = nil
	}

	if err := s.competitions.DeleteCompetition(ctx, competitionID); err != nil {
		return err
	}

	if s.standings != nil {
		if err := s.standings.DeleteStandings(ctx, competitionID); err != nil {
			s.logger.Warn("failed to delete standings cache", "competition_id", competitionID, "error", err)
		}
	}

	if s.dispatcher != nil {
		for _, p := range participants {
			if p.UserID == userID {
				continue
			}
			s.dispatcher.Notify(ctx, notify.EventCompetitionDeleted, p.UserID, map[string]any{
				"competition_id":   competitionID,
				"competition_name": c.Name,
			})
		}
	}

	return nil
}

// Invite issues a pending invitation, deduplicating against an existing
// pending invite to the same user.
func (s *CompetitionService) Invite(ctx context.Context, competitionID, inviterID, inviteeID string) (*domain.Invitation, error) {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if c.Status == domain.StatusCompleted {
		return nil, domain.ErrCompetitionEnded
	}

	already, err := s.participants.ParticipantExists(ctx, competitionID, inviteeID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, domain.ErrAlreadyParticipant
	}

	pending, err := s.competitions.HasPendingInvitation(ctx, competitionID, inviteeID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrAlreadyInvited
	}

	inv := &domain.Invitation{
		ID:            uuid.New().String(),
		CompetitionID: competitionID,
		InviterID:     inviterID,
		InviteeID:     inviteeID,
		Status:        domain.InviteStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.competitions.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		s.dispatcher.Notify(ctx, notify.EventInviteReceived, inviteeID, map[string]any{
			"competition_id":   competitionID,
			"competition_name": c.Name,
			"inviter_id":       inviterID,
		})
	}

	return inv, nil
}

// AcceptInvitation turns a pending invitation into a participant row
func (s *CompetitionService) AcceptInvitation(ctx context.Context, invitationID, userID string) error {
	inv, err := s.competitions.GetInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.InviteeID != userID || inv.Status != domain.InviteStatusPending {
		return domain.ErrInvitationNotFound
	}

	c, err := s.competitions.GetCompetition(ctx, inv.CompetitionID)
	if err != nil {
		return err
	}
	if c.Status == domain.StatusCompleted {
		return domain.ErrCompetitionEnded
	}

	if err := s.participants.CreateParticipant(ctx, inv.CompetitionID, userID); err != nil {
		return err
	}
	if err := s.competitions.UpdateInvitationStatus(ctx, invitationID, domain.InviteStatusAccepted); err != nil {
		return err
	}

	if s.dispatcher != nil {
		s.dispatcher.Notify(ctx, notify.EventParticipantJoined, c.CreatorID, map[string]any{
			"competition_id": c.ID,
			"user_id":        userID,
		})
	}
	return nil
}

// DeclineInvitation marks a pending invitation declined
func (s *CompetitionService) DeclineInvitation(ctx context.Context, invitationID, userID string) error {
	inv, err := s.competitions.GetInvitation(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.InviteeID != userID || inv.Status != domain.InviteStatusPending {
		return domain.ErrInvitationNotFound
	}
	return s.competitions.UpdateInvitationStatus(ctx, invitationID, domain.InviteStatusDeclined)
}

// JoinPublic adds the requester to a public competition. All checks run
// server-side: this path is reachable by any authenticated identity.
func (s *CompetitionService) JoinPublic(ctx context.Context, competitionID, userID string) error {
	c, err := s.competitions.GetCompetition(ctx, competitionID)
	if err != nil {
		return err
	}
	if !c.IsPublic {
		return domain.ErrCompetitionPrivate
	}
	if c.Status == domain.StatusCompleted {
		return domain.ErrCompetitionEnded
	}
	// Fixed-window competitions close to new entrants at the start line;
	// custom competitions stay open for late joiners.
	if c.Status == domain.StatusActive && c.Type != domain.TypeCustom {
		return domain.ErrCompetitionStarted
	}

	if err := s.participants.CreateParticipant(ctx, competitionID, userID); err != nil {
		return err
	}

	if s.dispatcher != nil {
		s.dispatcher.Notify(ctx, notify.EventParticipantJoined, c.CreatorID, map[string]any{
			"competition_id": c.ID,
			"user_id":        userID,
		})
	}
	return nil
}
