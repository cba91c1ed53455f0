package domain

import (
	"time"
)

// Status describes the lifecycle state of an experiment.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// DefaultTitle is used when an experiment has no user messages yet.
const DefaultTitle = "New Experiment"

// titleMaxLen bounds the derived title length.
const titleMaxLen = 50

// Experiment is a user's pass (or repeated passes) through the phase
// cycle, with its conversation log and metadata. Experiments are never
// hard-deleted; closing one moves it to paused.
type Experiment struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Curiosity    string    `json:"curiosity"`
	Hypothesis   string    `json:"hypothesis"`
	Status       Status    `json:"status"`
	CurrentPhase Phase     `json:"current_phase"`
	StartDate    time.Time `json:"start_date"`
	LastUpdated  time.Time `json:"last_updated"`
	Messages     []Message `json:"messages"`
}

// DeriveTitle returns the first user message, truncated, as the
// experiment title. Falls back to DefaultTitle when no user message
// exists yet.
func DeriveTitle(messages []Message) string {
	for _, m := range messages {
		if m.Sender == SenderUser {
			if len(m.Content) > titleMaxLen {
				return m.Content[:titleMaxLen] + "..."
			}
			return m.Content
		}
	}
	return DefaultTitle
}

// DeriveCuriosity returns the first user message tagged with the
// observe phase, or "" if none exists.
func DeriveCuriosity(messages []Message) string {
	return firstUserMessageIn(messages, PhaseObserve)
}

// DeriveHypothesis returns the first user message tagged with the
// hypothesize phase, or "" if none exists.
func DeriveHypothesis(messages []Message) string {
	return firstUserMessageIn(messages, PhaseHypothesize)
}

func firstUserMessageIn(messages []Message, phase Phase) string {
	for _, m := range messages {
		if m.Sender == SenderUser && m.Phase == phase {
			return m.Content
		}
	}
	return ""
}

// Refresh recomputes the derived fields from the message log and bumps
// the update timestamp.
func (e *Experiment) Refresh(now time.Time) {
	e.Title = DeriveTitle(e.Messages)
	e.Curiosity = DeriveCuriosity(e.Messages)
	e.Hypothesis = DeriveHypothesis(e.Messages)
	e.LastUpdated = now
}

// ScheduleInfo is the derived start date, duration, and check-in
// cadence for a committed experiment.
type ScheduleInfo struct {
	StartDate        time.Time `json:"start_date"`
	DurationDays     int       `json:"duration"`
	NextCheckIn      time.Time `json:"next_check_in"`
	CheckInFrequency string    `json:"check_in_frequency"`
}

// Progress summarizes where a user is inside an experiment, for
// display purposes.
type Progress struct {
	CurrentPhase    Phase `json:"current_phase"`
	DayInExperiment int   `json:"day_in_experiment"`
	TotalDays       int   `json:"total_days"`
	IsComplete      bool  `json:"is_complete"`
}

// ProgressFor computes display progress for an experiment. TotalDays
// defaults to 7 until a schedule has been committed.
func ProgressFor(exp *Experiment, schedule *ScheduleInfo, now time.Time) Progress {
	p := Progress{
		CurrentPhase:    PhaseObserve,
		DayInExperiment: 1,
		TotalDays:       7,
	}
	if exp == nil {
		return p
	}
	p.CurrentPhase = exp.CurrentPhase
	p.IsComplete = exp.CurrentPhase == PhaseRemix
	if schedule != nil {
		p.TotalDays = schedule.DurationDays
		day := int(now.Sub(schedule.StartDate).Hours()/24) + 1
		if day < 1 {
			day = 1
		}
		if day > p.TotalDays {
			day = p.TotalDays
		}
		p.DayInExperiment = day
	}
	return p
}
