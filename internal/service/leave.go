package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fitcomp/internal/config"
	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/notify"
	"github.com/fitcomp/internal/payment"
)

// LeaveService runs the payment-gated leave-competition state machine:
//
//	Requested -> Rejected(NotParticipant)
//	          -> Rejected(IsCreator)
//	          -> PaymentRequired -> Rejected(VerificationFailed)
//	                             -> Removed
//	          -> Removed
//
// Nothing is mutated until the single terminal delete.
type LeaveService struct {
	competitions CompetitionStore
	participants ParticipantStore
	profiles     ProfileStore
	verifier     payment.Verifier
	standings    StandingsCache
	dispatcher   notify.Dispatcher
	config       *config.PaymentConfig
	logger       *slog.Logger
}

// NewLeaveService creates a new leave service
func NewLeaveService(
	competitions CompetitionStore,
	participants ParticipantStore,
	profiles ProfileStore,
	verifier payment.Verifier,
	standings StandingsCache,
	dispatcher notify.Dispatcher,
	cfg *config.PaymentConfig,
	logger *slog.Logger,
) *LeaveService {
	return &LeaveService{
		competitions: competitions,
		participants: participants,
		profiles:     profiles,
		verifier:     verifier,
		standings:    standings,
		dispatcher:   dispatcher,
		config:       cfg,
		logger:       logger,
	}
}

// Leave processes a leave request. Authorization rejections and the
// payment-required response mutate nothing, so the call is safely
// retryable until the terminal removal.
func (s *LeaveService) Leave(ctx context.Context, req domain.LeaveRequest) (*domain.LeaveResult, error) {
	// 1. Requester must be a participant
	if _, err := s.participants.GetParticipant(ctx, req.CompetitionID, req.UserID); err != nil {
		return nil, err
	}

	// 2. Creators delete, they don't leave: a competition must never be
	// orphaned without an owner.
	competition, err := s.competitions.GetCompetition(ctx, req.CompetitionID)
	if err != nil {
		return nil, err
	}
	if competition.CreatorID == req.UserID {
		return &domain.LeaveResult{Outcome: domain.LeaveIsCreator}, domain.ErrCreatorCannotLeave
	}

	// 3. Tier comes from the server-side profile, never from the client.
	profile, err := s.profiles.GetProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !profile.Tier.Paid() {
		// 4. Free tier pays the exit fee. Without a receipt this is a
		// non-terminal response carrying the expected terms.
		if req.TransactionID == "" {
			return &domain.LeaveResult{
				Outcome: domain.LeavePaymentRequired,
				Payment: &domain.PaymentTerms{
					Amount:    s.config.Amount,
					Currency:  s.config.Currency,
					ProductID: s.config.ProductID,
				},
			}, nil
		}

		// 5. Verify the receipt against the external payment ledger.
		valid, err := s.verifier.Verify(ctx, req.UserID, req.TransactionID, s.config.ProductID)
		if err != nil {
			return nil, fmt.Errorf("verifying payment: %w", err)
		}
		if !valid {
			return &domain.LeaveResult{Outcome: domain.LeaveVerificationFailed}, domain.ErrVerificationFailed
		}
	}

	// 6. The only terminal success transition. A delete failure after a
	// verified payment is "money taken, service not rendered" and must
	// surface loudly.
	if err := s.participants.DeleteParticipant(ctx, req.CompetitionID, req.UserID); err != nil {
		s.logger.Error("participant removal failed after authorization",
			"competition_id", req.CompetitionID,
			"user_id", req.UserID,
			"paid", !profile.Tier.Paid(),
			"error", err,
		)
		return nil, fmt.Errorf("removing participant: %w", err)
	}

	if s.standings != nil {
		if err := s.standings.RemoveParticipant(ctx, req.CompetitionID, req.UserID); err != nil {
			s.logger.Warn("failed to evict participant from standings cache",
				"competition_id", req.CompetitionID,
				"user_id", req.UserID,
				"error", err,
			)
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.Notify(ctx, notify.EventParticipantLeft, competition.CreatorID, map[string]any{
			"competition_id": req.CompetitionID,
			"user_id":        req.UserID,
		})
	}

	return &domain.LeaveResult{Outcome: domain.LeaveRemoved}, nil
}
