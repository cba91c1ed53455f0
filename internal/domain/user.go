package domain

import (
	"time"
)

// User represents an anonymous per-device user and their
// active-experiment pointer. At most one experiment is active per user
// at a time; CurrentExperimentID references it, or is empty.
type User struct {
	UserID              string    `json:"user_id"`
	Username            string    `json:"username"`
	CurrentExperimentID string    `json:"current_experiment_id,omitempty"`
	TotalExperiments    int       `json:"total_experiments"`
	StreakDays          int       `json:"streak_days"`
	LastActive          time.Time `json:"last_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasActiveExperiment returns true if the user has a non-empty
// current-experiment pointer.
func (u *User) HasActiveExperiment() bool {
	return u.CurrentExperimentID != ""
}
