package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avezina/curioloop/internal/bot"
	"github.com/avezina/curioloop/internal/config"
	"github.com/avezina/curioloop/internal/domain"
	"github.com/avezina/curioloop/internal/identity"
)

// historyTurns bounds how much stored conversation is replayed to the
// completion service per request.
const historyTurns = 10

// ChatHandler handles the conversational endpoint.
type ChatHandler struct {
	*Handler
	rateLimiter *RateLimiter
	maxBodySize int64
	now         func() time.Time
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler, cfg *config.Config) *ChatHandler {
	return &ChatHandler{
		Handler:     base,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		maxBodySize: cfg.MaxRequestBodySize,
		now:         time.Now,
	}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.Chat)
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message             string   `json:"message"`
	Phase               string   `json:"phase"`
	ExperimentID        string   `json:"experiment_id,omitempty"`
	ConversationHistory []string `json:"conversation_history,omitempty"`
	NewExperiment       bool     `json:"new_experiment,omitempty"`
}

// ChatResponse is the bot's answer plus the experiment it was recorded
// against.
type ChatResponse struct {
	*bot.Response
	ExperimentID      string `json:"experiment_id"`
	TransitionMessage string `json:"transition_message,omitempty"`
}

// TurnError is a turn-processing failure with an HTTP-shaped status,
// so both the HTTP and WebSocket transports can report it uniformly.
type TurnError struct {
	Status  int
	Message string
}

func (e *TurnError) Error() string { return e.Message }

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.ProcessTurn(r.Context(), userID, req)
	if err != nil {
		var terr *TurnError
		if errors.As(err, &terr) {
			Error(w, terr.Status, terr.Message)
			return
		}
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	JSON(w, http.StatusOK, resp)
}

// ProcessTurn runs one full conversational turn: rate-limit, validate,
// resolve the experiment, generate the bot response, and persist the
// updated log. Both the HTTP and WebSocket transports go through here.
func (h *ChatHandler) ProcessTurn(ctx context.Context, userID string, req ChatRequest) (*ChatResponse, error) {
	if !h.rateLimiter.Allow(userID) {
		return nil, &TurnError{Status: http.StatusTooManyRequests, Message: "rate limit exceeded, please slow down"}
	}

	// Validation happens before any experiment state is touched.
	if req.Message == "" || req.Phase == "" {
		return nil, &TurnError{Status: http.StatusBadRequest, Message: "Message and phase are required"}
	}
	phase, err := domain.ParsePhase(req.Phase)
	if err != nil {
		return nil, &TurnError{Status: http.StatusBadRequest, Message: "Message and phase are required"}
	}

	exp, err := h.resolveExperiment(ctx, userID, req)
	if err != nil {
		slog.Error("Failed to resolve experiment", "user_id", userID, "error", err)
		return nil, &TurnError{Status: http.StatusInternalServerError, Message: "failed to load experiment"}
	}
	if exp == nil {
		return nil, &TurnError{Status: http.StatusNotFound, Message: "experiment not found"}
	}

	now := h.now()
	exp.Messages = append(exp.Messages, domain.Message{
		ID:        uuid.NewString(),
		Content:   req.Message,
		Sender:    domain.SenderUser,
		Timestamp: now,
		Phase:     phase,
	})

	history := req.ConversationHistory
	if len(history) == 0 {
		history = historyFromMessages(exp.Messages)
	}

	botResp := h.bot.Generate(ctx, bot.Request{
		Message: req.Message,
		Phase:   phase,
		History: history,
	})

	exp.Messages = append(exp.Messages, domain.Message{
		ID:        uuid.NewString(),
		Content:   botResp.Message,
		Sender:    domain.SenderBot,
		Timestamp: h.now(),
		Phase:     phase,
	})

	resp := ChatResponse{Response: botResp, ExperimentID: exp.ID}

	if botResp.NextPhase != nil {
		next := *botResp.NextPhase
		if next != phase {
			resp.TransitionMessage = bot.TransitionMessage(phase, next)
			exp.Messages = append(exp.Messages, domain.Message{
				ID:        uuid.NewString(),
				Content:   resp.TransitionMessage,
				Sender:    domain.SenderBot,
				Timestamp: h.now(),
				Phase:     next,
			})
		}
		exp.CurrentPhase = next
	}
	if botResp.IsComplete {
		exp.Status = domain.StatusCompleted
	}

	exp.Refresh(h.now())
	if err := h.repo.SaveExperiment(ctx, exp); err != nil {
		slog.Error("Failed to save experiment", "user_id", userID, "experiment_id", exp.ID, "error", err)
		return nil, &TurnError{Status: http.StatusInternalServerError, Message: "failed to save experiment"}
	}

	return &resp, nil
}

// resolveExperiment finds the experiment this turn belongs to. An
// explicit ID must exist (nil return maps to 404); otherwise the
// user's current experiment is used, and a fresh one is created when
// there is none or a new one was requested.
func (h *ChatHandler) resolveExperiment(ctx context.Context, userID string, req ChatRequest) (*domain.Experiment, error) {
	if req.ExperimentID != "" {
		return h.repo.GetExperiment(ctx, userID, req.ExperimentID)
	}

	if !req.NewExperiment {
		user, err := h.repo.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user != nil && user.HasActiveExperiment() {
			exp, err := h.repo.GetExperiment(ctx, userID, user.CurrentExperimentID)
			if err != nil {
				return nil, err
			}
			if exp != nil && exp.Status == domain.StatusActive {
				return exp, nil
			}
		}
	}

	now := h.now()
	return &domain.Experiment{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        domain.DefaultTitle,
		Status:       domain.StatusActive,
		CurrentPhase: domain.PhaseObserve,
		StartDate:    now,
		LastUpdated:  now,
	}, nil
}

// historyFromMessages renders the tail of the stored log as completion
// history lines, excluding the just-appended user turn.
func historyFromMessages(messages []domain.Message) []string {
	if len(messages) == 0 {
		return nil
	}
	prior := messages[:len(messages)-1]
	start := 0
	if len(prior) > historyTurns {
		start = len(prior) - historyTurns
	}
	history := make([]string, 0, len(prior)-start)
	for _, m := range prior[start:] {
		history = append(history, string(m.Sender)+": "+m.Content)
	}
	return history
}
