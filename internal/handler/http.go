package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fitcomp/internal/domain"
	"github.com/fitcomp/internal/service"
	"github.com/fitcomp/internal/websocket"
)

// CompetitionAPI is the competition lifecycle surface the handler calls.
type CompetitionAPI interface {
	Create(ctx context.Context, creatorID string, req service.CreateCompetitionRequest) (*domain.Competition, error)
	Get(ctx context.Context, competitionID string) (*domain.Competition, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Competition, error)
	ListPublic(ctx context.Context) ([]domain.Competition, error)
	Update(ctx context.Context, competitionID, userID string, req service.UpdateCompetitionRequest) (*domain.Competition, error)
	Delete(ctx context.Context, competitionID, userID string) error
	Invite(ctx context.Context, competitionID, inviterID, inviteeID string) (*domain.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID, userID string) error
	DeclineInvitation(ctx context.Context, invitationID, userID string) error
	JoinPublic(ctx context.Context, competitionID, userID string) error
}

// SyncAPI ingests activity samples.
type SyncAPI interface {
	IngestActivity(ctx context.Context, competitionID, userID string, goals domain.RingGoals, samples []domain.DaySample) (*domain.ParticipantAggregate, error)
}

// LeaveAPI runs the leave-competition gate.
type LeaveAPI interface {
	Leave(ctx context.Context, req domain.LeaveRequest) (*domain.LeaveResult, error)
}

// StandingsAPI serves ranked standings reads.
type StandingsAPI interface {
	GetTopN(ctx context.Context, competitionID string, n int) ([]domain.StandingsEntry, error)
	GetRank(ctx context.Context, competitionID, userID string) (*domain.StandingsEntry, error)
}

// ParticipantAPI serves participant detail reads.
type ParticipantAPI interface {
	GetParticipant(ctx context.Context, competitionID, userID string) (*domain.Participant, error)
	ListParticipants(ctx context.Context, competitionID string) ([]domain.Participant, error)
}

// ProfileAPI serves the server-side user profile.
type ProfileAPI interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, p *domain.Profile) error
}

// Handler provides HTTP handlers for the competition API
type Handler struct {
	competitions CompetitionAPI
	sync         SyncAPI
	leave        LeaveAPI
	standings    StandingsAPI
	participants ParticipantAPI
	profiles     ProfileAPI
	hub          *websocket.Hub
	jwtSecret    string
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	competitions CompetitionAPI,
	sync SyncAPI,
	leave LeaveAPI,
	standings StandingsAPI,
	participants ParticipantAPI,
	profiles ProfileAPI,
	hub *websocket.Hub,
	jwtSecret string,
	defaultLimit, maxLimit int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		competitions: competitions,
		sync:         sync,
		leave:        leave,
		standings:    standings,
		participants: participants,
		profiles:     profiles,
		hub:          hub,
		jwtSecret:    jwtSecret,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.requireAuth)

		// WebSocket endpoint for live standings
		r.Get("/ws", h.HandleWebSocket)

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", h.GetProfile)
			r.Put("/", h.UpdateProfile)
		})

		r.Route("/competitions", func(r chi.Router) {
			r.Post("/", h.CreateCompetition)
			r.Get("/", h.ListCompetitions)
			r.Get("/public", h.ListPublicCompetitions)

			r.Route("/{competitionID}", func(r chi.Router) {
				r.Get("/", h.GetCompetition)
				r.Patch("/", h.UpdateCompetition)
				r.Delete("/", h.DeleteCompetition)

				r.Post("/join", h.JoinCompetition)
				r.Post("/leave", h.LeaveCompetition)
				r.Post("/invitations", h.InviteUser)
				r.Post("/sync", h.SyncActivity)

				r.Get("/standings", h.GetStandings)
				r.Get("/standings/{userID}", h.GetStanding)
				r.Get("/participants", h.ListParticipants)
				r.Get("/participants/{userID}", h.GetParticipant)
			})
		})

		r.Route("/invitations/{invitationID}", func(r chi.Router) {
			r.Post("/accept", h.AcceptInvitation)
			r.Post("/decline", h.DeclineInvitation)
		})
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error onto a status code
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsAuthorizationError(err):
		h.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrAlreadyParticipant),
		errors.Is(err, domain.ErrAlreadyInvited),
		errors.Is(err, domain.ErrCompetitionStarted),
		errors.Is(err, domain.ErrCompetitionEnded),
		errors.Is(err, domain.ErrFieldLocked),
		errors.Is(err, domain.ErrSyncInProgress):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidDates),
		errors.Is(err, domain.ErrInvalidScoringType):
		h.writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}
