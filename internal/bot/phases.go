package bot

import (
	"strings"

	"github.com/avezina/curioloop/internal/domain"
)

// phaseProgression maps each phase to the phase it advances to when
// the user's ready keywords are detected. Run maps to itself: the user
// stays in run across daily check-ins rather than racing to reflect.
var phaseProgression = map[domain.Phase]domain.Phase{
	domain.PhaseObserve:     domain.PhaseHypothesize,
	domain.PhaseHypothesize: domain.PhaseCommit,
	domain.PhaseCommit:      domain.PhaseRun,
	domain.PhaseRun:         domain.PhaseRun,
	domain.PhaseReflect:     domain.PhaseRemix,
	domain.PhaseRemix:       domain.PhaseObserve,
}

// readyKeywords lists, per phase, the phrases whose presence signals
// the user is ready to advance. Substring matching against lowercased
// text; this is the minimum acceptance contract for offline mode.
var readyKeywords = map[domain.Phase][]string{
	domain.PhaseObserve:     {"ready", "curious about", "want to explore", "hypothesis", "experiment"},
	domain.PhaseHypothesize: {"commit", "ready to try", "let's do it", "pledge", "promise"},
	domain.PhaseCommit:      {"start", "begin", "day 1", "experiment", "trying"},
	domain.PhaseRun:         {"reflect", "learned", "insights", "done", "finished", "complete"},
	domain.PhaseReflect:     {"next", "new experiment", "remix", "try again", "continue"},
	domain.PhaseRemix:       {"start over", "new curiosity", "begin again", "observe"},
}

// commitmentKeywords signal a commitment statement during the commit
// phase, triggering the timing sub-protocol.
var commitmentKeywords = []string{"commit", "pledge", "promise", "will try", "going to"}

// Timing keyword sets for the commit sub-protocol. Both a start token
// and a duration token must be present before a schedule is extracted.
var (
	startKeywords    = []string{"start", "begin", "starting", "tomorrow", "today", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	durationKeywords = []string{"days", "weeks", "week", "day", "for", "duration", "length", "period"}
)

// Advance applies the keyword test for the current phase against text
// and returns the next phase. ok is false when no keyword matched,
// meaning no transition; that is distinct from advancing to the same
// phase (run's self-loop reports ok=true).
func Advance(phase domain.Phase, text string) (next domain.Phase, ok bool) {
	if !containsAny(text, readyKeywords[phase]) {
		return "", false
	}
	next, ok = phaseProgression[phase]
	return next, ok
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasCommitment(text string) bool {
	return containsAny(text, commitmentKeywords)
}

func hasStartToken(text string) bool {
	return containsAny(text, startKeywords)
}

func hasDurationToken(text string) bool {
	return containsAny(text, durationKeywords)
}
