package bot

import (
	"github.com/avezina/curioloop/internal/domain"
)

// WelcomeMessage opens every fresh conversation.
const WelcomeMessage = "Hey! I'm CurioBot - I help you turn curiosity into quick experiments. What's something you're curious about that you'd like to test or explore?"

const basePersonality = `You are CurioBot, a warm and action-oriented AI companion that helps people turn curiosity into quick learning experiments. Your personality is:
- Warm but direct - you move people to action quickly
- Action-oriented - you focus on getting users experimenting fast
- Practical - you help create simple, doable experiments
- Encouraging - you celebrate progress and learning

The CurioLoop has 6 phases: Observe -> Hypothesize -> Commit -> Run -> Reflect -> Remix

IMPORTANT: Move quickly through the early phases. Don't over-analyze. Get users from curiosity to action in 2-3 exchanges max.`

var phasePrompts = map[domain.Phase]string{
	domain.PhaseObserve: `Phase 1: Observe (BE QUICK - 1-2 exchanges max)
Help the user quickly identify ONE specific thing they're curious about. Don't over-analyze. Just get them to name something specific they want to explore. Move to hypothesize immediately.`,

	domain.PhaseHypothesize: `Phase 2: Hypothesize (BE QUICK - 1-2 exchanges max)
Help the user turn their curiosity into a specific, testable hypothesis. Focus on making it:
- ACTIONABLE: Clear steps they can take
- MEASURABLE: How they'll know if it worked
- SIMPLE: Easy to execute

Get them to a clear "What if I [specific action] and I measure [specific outcome]?" statement.`,

	domain.PhaseCommit: `Phase 3: Commit (BE QUICK - 1-2 exchanges max)
Help the user make a quick commitment and set a timeline. Get them to commit to trying their experiment for a specific short period (1-7 days max). Move them to action.`,

	domain.PhaseRun: `Phase 4: Run
Support the user during their experiment with brief, encouraging check-ins. Ask simple questions about what they're noticing. Keep it light and supportive.`,

	domain.PhaseReflect: `Phase 5: Reflect
Guide the user through a quick reflection on their experiment. Focus on one key insight or learning. Don't over-analyze.`,

	domain.PhaseRemix: `Phase 6: Remix
Help the user decide what to do next - a new experiment, refine this one, or explore something new. Keep it simple and action-oriented.`,
}

// SystemPrompt returns the completion-service instruction for a phase.
func SystemPrompt(phase domain.Phase) string {
	return basePersonality + "\n\n" + phasePrompts[phase]
}

var fallbackResponses = map[domain.Phase]string{
	domain.PhaseObserve:     "Great! I can see your curiosity about that. Let's turn this into a quick experiment. What specific aspect of this do you want to test or explore?",
	domain.PhaseHypothesize: "Perfect! Now let's make this specific and measurable. What exactly will you do? And how will you know if it's working? (Example: 'What if I wake up 30 minutes earlier and I measure how energetic I feel on a 1-10 scale?')",
	domain.PhaseCommit:      "Excellent! Now let's commit to trying this. How many days do you want to run this experiment? (I recommend 3-7 days to start)",
	domain.PhaseRun:         "How's your experiment going? What have you tried and what are you noticing?",
	domain.PhaseReflect:     "Nice work completing your experiment! What's the biggest thing you learned or discovered?",
	domain.PhaseRemix:       "Great insights! What would you like to explore next - refine this experiment, try something new, or start a different curiosity?",
}

const timingPromptFirst = `Perfect! Now let's set a timeline. When do you want to start and how long?

Quick examples:
- "Tomorrow for 5 days"
- "Today for 3 days"
- "Monday for 1 week"

Keep it short - 3-7 days is usually perfect for learning something new!`

const timingPromptRetry = `Almost there! Just need timing details:

When do you want to start? (today, tomorrow, Monday, etc.)
How long? (3-7 days recommended)

Example: "Tomorrow for 5 days"`

var transitionMessages = map[[2]domain.Phase]string{
	{domain.PhaseObserve, domain.PhaseHypothesize}: "Great! Now let's turn that curiosity into a testable experiment. What do you think might happen if you explored this further?",
	{domain.PhaseHypothesize, domain.PhaseCommit}:  "Perfect! You've got a solid experiment planned. Now let's make a commitment. Write a one-line pledge about your commitment to this curiosity experiment.",
	{domain.PhaseCommit, domain.PhaseRun}:          "Excellent! Your experiment starts now. I'll check in with you each day to see how it's going. What did you try today?",
	{domain.PhaseRun, domain.PhaseReflect}:         "Congratulations on completing your experiment! Let's reflect on what you learned. What insights did you gain?",
	{domain.PhaseReflect, domain.PhaseRemix}:       "Based on your reflection, what would you like to explore next? A new experiment, a refinement, or something completely different?",
	{domain.PhaseRemix, domain.PhaseObserve}:       "Let's start a new curiosity journey! What's something that caught your attention recently?",
}

// TransitionMessage returns the canned announcement for moving between
// two phases, or a generic nudge for pairs outside the normal cycle.
func TransitionMessage(from, to domain.Phase) string {
	if msg, ok := transitionMessages[[2]domain.Phase{from, to}]; ok {
		return msg
	}
	return "Let's move to the next phase of your CurioLoop journey."
}
