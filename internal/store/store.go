// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/avezina/curioloop/internal/domain"
)

// Repository defines the interface for persisting users and their
// experiments. Implementations are scoped to one server process; the
// per-user keying is how concurrent users stay isolated.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil when
	// the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastActive updates the last_active timestamp for a user.
	UpdateLastActive(ctx context.Context, userID string, lastActive time.Time) error

	// GetExperiment retrieves one experiment. Returns nil, nil when it
	// does not exist.
	GetExperiment(ctx context.Context, userID, id string) (*domain.Experiment, error)

	// ListExperiments retrieves all of a user's experiments, most
	// recently updated first.
	ListExperiments(ctx context.Context, userID string) ([]*domain.Experiment, error)

	// SaveExperiment upserts an experiment record, replacing any
	// existing record with the same id, and points the user's
	// current-experiment pointer at it.
	SaveExperiment(ctx context.Context, exp *domain.Experiment) error

	// SwitchExperiment points the user's current-experiment pointer at
	// an existing experiment. No-op if the experiment does not exist.
	SwitchExperiment(ctx context.Context, userID, id string) error

	// CloseCurrentExperiment marks the user's current experiment paused
	// (if any) and clears the pointer. Experiment data is kept.
	CloseCurrentExperiment(ctx context.Context, userID string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
