package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/service"
)

// CreateCompetition handles competition creation
func (h *Handler) CreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCompetitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	competition, err := h.competitions.Create(r.Context(), UserID(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    competition,
	})
}

// ListCompetitions returns the requester's competitions
func (h *Handler) ListCompetitions(w http.ResponseWriter, r *http.Request) {
	competitions, err := h.competitions.ListForUser(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, competitions)
}

// ListPublicCompetitions returns joinable public competitions
func (h *Handler) ListPublicCompetitions(w http.ResponseWriter, r *http.Request) {
	competitions, err := h.competitions.ListPublic(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, competitions)
}

// GetCompetition returns a competition by ID
func (h *Handler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	competition, err := h.competitions.Get(r.Context(), competitionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, competition)
}

// UpdateCompetition applies field edits under the editability matrix
func (h *Handler) UpdateCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req service.UpdateCompetitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	competition, err := h.competitions.Update(r.Context(), competitionID, UserID(r.Context()), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, competition)
}

// DeleteCompetition removes a competition (creator only)
func (h *Handler) DeleteCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.competitions.Delete(r.Context(), competitionID, UserID(r.Context())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// JoinCompetition adds the requester to a public competition
func (h *Handler) JoinCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.competitions.JoinPublic(r.Context(), competitionID, UserID(r.Context())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "joined"})
}

// inviteRequest is the body for invitation issuance
type inviteRequest struct {
	InviteeID string `json:"invitee_id"`
}

// InviteUser issues a pending invitation
func (h *Handler) InviteUser(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || competitionID == "" || req.InviteeID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	inv, err := h.competitions.Invite(r.Context(), competitionID, UserID(r.Context()), req.InviteeID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    inv,
	})
}

// AcceptInvitation accepts a pending invitation
func (h *Handler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID := chi.URLParam(r, "invitationID")
	if invitationID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.competitions.AcceptInvitation(r.Context(), invitationID, UserID(r.Context())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// DeclineInvitation declines a pending invitation
func (h *Handler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	invitationID := chi.URLParam(r, "invitationID")
	if invitationID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.competitions.DeclineInvitation(r.Context(), invitationID, UserID(r.Context())); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "declined"})
}

// leaveRequest is the body for the leave endpoint
type leaveRequest struct {
	TransactionID string `json:"transactionId,omitempty"`
}

// leaveResponse is the leave endpoint's wire contract. A payment-required
// outcome deliberately ships as HTTP 200 with success=false for client
// compatibility; callers must check the success flag, not only the status.
type leaveResponse struct {
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
	RequiresPayment bool    `json:"requiresPayment,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	Currency        string  `json:"currency,omitempty"`
	ProductID       string  `json:"productId,omitempty"`
}

// LeaveCompetition runs the payment-gated leave state machine
func (h *Handler) LeaveCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req leaveRequest
	if r.Body != nil {
		// An empty body is a valid leave request without a receipt
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.leave.Leave(r.Context(), domain.LeaveRequest{
		CompetitionID: competitionID,
		UserID:        UserID(r.Context()),
		TransactionID: req.TransactionID,
	})

	switch {
	case err == nil && result.Outcome == domain.LeaveRemoved:
		h.writeJSON(w, http.StatusOK, leaveResponse{Success: true})

	case err == nil && result.Outcome == domain.LeavePaymentRequired:
		h.writeJSON(w, http.StatusOK, leaveResponse{
			Success:         false,
			Error:           "payment required to leave this competition",
			RequiresPayment: true,
			Amount:          result.Payment.Amount,
			Currency:        result.Payment.Currency,
			ProductID:       result.Payment.ProductID,
		})

	case errors.Is(err, domain.ErrVerificationFailed):
		// Recoverable: the caller should redo the purchase flow and retry
		h.writeJSON(w, http.StatusPaymentRequired, leaveResponse{
			Success: false,
			Error:   err.Error(),
		})

	case errors.Is(err, domain.ErrCreatorCannotLeave):
		h.writeJSON(w, http.StatusForbidden, leaveResponse{
			Success: false,
			Error:   err.Error(),
		})

	case domain.IsNotFoundError(err):
		h.writeJSON(w, http.StatusNotFound, leaveResponse{
			Success: false,
			Error:   err.Error(),
		})

	default:
		h.logger.Error("leave request failed",
			"competition_id", competitionID,
			"user_id", UserID(r.Context()),
			"error", err,
		)
		h.writeJSON(w, http.StatusInternalServerError, leaveResponse{
			Success: false,
			Error:   domain.ErrInternalError.Error(),
		})
	}
}

// syncRequest is the body for the activity sync endpoint
type syncRequest struct {
	Goals   domain.RingGoals   `json:"goals"`
	Samples []domain.DaySample `json:"samples"`
}

// SyncActivity ingests a batch of daily samples for the requester
func (h *Handler) SyncActivity(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Samples) == 0 {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	agg, err := h.sync.IngestActivity(r.Context(), competitionID, UserID(r.Context()), req.Goals, req.Samples)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, agg)
}

// GetStandings returns the top N standings for a competition
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	entries, err := h.standings.GetTopN(r.Context(), competitionID, limit)
	if err != nil || len(entries) == 0 {
		// The set may not exist yet (fresh competition, or Redis flushed
		// before the reconcile pass). Serve from the canonical aggregates.
		if err != nil {
			h.logger.Warn("standings cache read failed, falling back to database",
				"competition_id", competitionID,
				"error", err,
			)
		}
		entries, err = h.standingsFromDatabase(r.Context(), competitionID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		if len(entries) > limit {
			entries = entries[:limit]
		}
	}
	h.writeSuccess(w, entries)
}

// GetStanding returns one participant's rank and points
func (h *Handler) GetStanding(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	userID := chi.URLParam(r, "userID")
	if competitionID == "" || userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	entry, err := h.standings.GetRank(r.Context(), competitionID, userID)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			h.writeDomainError(w, err)
			return
		}
		// Absent from the cache is not authoritative; rank from the database
		// before declaring the user a non-participant.
		entries, dbErr := h.standingsFromDatabase(r.Context(), competitionID)
		if dbErr != nil {
			h.writeDomainError(w, dbErr)
			return
		}
		for i := range entries {
			if entries[i].UserID == userID {
				h.writeSuccess(w, entries[i])
				return
			}
		}
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, entry)
}

// standingsFromDatabase ranks the canonical participant aggregates directly.
func (h *Handler) standingsFromDatabase(ctx context.Context, competitionID string) ([]domain.StandingsEntry, error) {
	participants, err := h.participants.ListParticipants(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].TotalPoints > participants[j].TotalPoints
	})
	entries := make([]domain.StandingsEntry, len(participants))
	for i, p := range participants {
		entries[i] = domain.StandingsEntry{
			Rank:        int64(i + 1),
			UserID:      p.UserID,
			TotalPoints: int64(p.TotalPoints),
		}
	}
	return entries, nil
}

// ListParticipants returns a competition's participants with aggregates
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	if competitionID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	participants, err := h.participants.ListParticipants(r.Context(), competitionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, participants)
}

// GetParticipant returns one participant's aggregate detail
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	competitionID := chi.URLParam(r, "competitionID")
	userID := chi.URLParam(r, "userID")
	if competitionID == "" || userID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	participant, err := h.participants.GetParticipant(r.Context(), competitionID, userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, participant)
}
