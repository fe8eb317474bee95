package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fitcomp/internal/domain"
)

// GetProfile returns the requester's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, profile)
}

// profileRequest is the body for profile updates
type profileRequest struct {
	Username string `json:"username"`
}

// UpdateProfile creates or updates the requester's profile. The tier is
// never taken from the request body: new profiles start free and existing
// tiers survive the update, since tier changes arrive from the payment
// provider's entitlement sync, not from the app.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	userID := UserID(r.Context())
	tier := domain.TierFree
	if existing, err := h.profiles.GetProfile(r.Context(), userID); err == nil {
		tier = existing.Tier
	} else if !domain.IsNotFoundError(err) {
		h.writeDomainError(w, err)
		return
	}

	profile := &domain.Profile{
		UserID:   userID,
		Username: strings.TrimSpace(req.Username),
		Tier:     tier,
	}
	if err := h.profiles.UpsertProfile(r.Context(), profile); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, profile)
}
