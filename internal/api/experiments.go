package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avezina/curioloop/internal/bot"
	"github.com/avezina/curioloop/internal/domain"
	"github.com/avezina/curioloop/internal/identity"
)

// ExperimentHandler handles experiment lifecycle endpoints.
type ExperimentHandler struct {
	*Handler
}

// NewExperimentHandler creates a new experiment handler.
func NewExperimentHandler(base *Handler) *ExperimentHandler {
	return &ExperimentHandler{Handler: base}
}

// RegisterRoutes registers experiment routes.
func (h *ExperimentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/experiments", h.List)
		r.Post("/experiments/{id}/switch", h.Switch)
		r.Post("/experiments/close", h.Close)
	})
}

// List returns all of the user's experiments, most recently updated
// first.
func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	experiments, err := h.repo.ListExperiments(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list experiments", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list experiments")
		return
	}
	if experiments == nil {
		experiments = []*domain.Experiment{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{"experiments": experiments})
}

// Switch points the user at another of their experiments.
func (h *ExperimentHandler) Switch(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "experiment id is required")
		return
	}

	exp, err := h.repo.GetExperiment(r.Context(), userID, id)
	if err != nil {
		slog.Error("Failed to load experiment", "user_id", userID, "experiment_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load experiment")
		return
	}
	if exp == nil {
		Error(w, http.StatusNotFound, "experiment not found")
		return
	}

	if err := h.repo.SwitchExperiment(r.Context(), userID, id); err != nil {
		slog.Error("Failed to switch experiment", "user_id", userID, "experiment_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to switch experiment")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"experiment": exp})
}

// Close pauses the user's current experiment, keeping its data.
func (h *ExperimentHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.repo.CloseCurrentExperiment(r.Context(), userID); err != nil {
		slog.Error("Failed to close experiment", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to close experiment")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// GetMe returns the current user's information and progress.
func (h *ExperimentHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	var current *domain.Experiment
	if user.HasActiveExperiment() {
		current, err = h.repo.GetExperiment(r.Context(), userID, user.CurrentExperimentID)
		if err != nil {
			slog.Error("Failed to load current experiment", "user_id", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to load experiment")
			return
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user":       user,
		"experiment": current,
		"progress":   domain.ProgressFor(current, nil, time.Now()),
	})
}

// GetConfig returns public configuration for the frontend.
func (h *ExperimentHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"ai_enabled":      h.bot.Enabled(),
		"welcome_message": bot.WelcomeMessage,
		"phases":          domain.Phases,
	})
}
