// Package bot implements CurioBot, the conversational coach that walks
// a user through the six-phase experimentation cycle. Responses come
// from an external completion service when one is configured, with a
// deterministic template fallback; callers always receive a well-formed
// response, never a transport error.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avezina/curioloop/internal/domain"
)

// Completer is the external text-completion service. Implementations
// may fail for any reason (timeout, auth, quota); the bot treats every
// failure identically and falls back to templates.
type Completer interface {
	Complete(ctx context.Context, system string, history []string, user string) (string, error)
}

const defaultCompletionTimeout = 30 * time.Second

// Request carries one user turn into the generator. History is the
// caller-truncated prior conversation; the bot does not bound it.
type Request struct {
	Message string
	Phase   domain.Phase
	History []string
}

// Response is the generator's answer for one turn. NextPhase is nil
// when no transition was signaled, which is distinct from an explicit
// transition to the same phase. IsComplete is true exactly when the
// pre-transition phase was remix.
type Response struct {
	Message      string               `json:"message"`
	NextPhase    *domain.Phase        `json:"next_phase,omitempty"`
	IsComplete   bool                 `json:"is_complete"`
	FollowUpTime *time.Time           `json:"follow_up_time,omitempty"`
	Details      *domain.ScheduleInfo `json:"experiment_details,omitempty"`
}

// Service generates CurioBot responses. It is stateless: all
// per-request state is parameter-carried, so a single instance is
// shared across handlers.
type Service struct {
	completer Completer // nil disables the completion-backed path
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a bot service. A nil completer yields a
// fallback-only bot.
func NewService(completer Completer, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		timeout:   defaultCompletionTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a completion service is configured.
func (s *Service) Enabled() bool {
	return s.completer != nil
}

// Generate produces the next bot message for a user turn. It never
// returns an error: completion failures, malformed output, and even
// panics inside the completion path all degrade to the deterministic
// fallback for the request's phase.
func (s *Service) Generate(ctx context.Context, req Request) *Response {
	if s.completer == nil {
		return s.fallback(req)
	}

	text, err := s.complete(ctx, req)
	if err != nil {
		slog.Warn("completion failed, using fallback", "phase", req.Phase, "error", err)
		return s.fallback(req)
	}

	resp := &Response{
		Message:    text,
		IsComplete: req.Phase == domain.PhaseRemix,
	}
	// The model's own words count toward the keyword test: if it tells
	// the user "let's commit", that is a transition signal too.
	if next, ok := Advance(req.Phase, req.Message+" "+text); ok {
		resp.NextPhase = &next
	}
	return resp
}

// complete invokes the external service under the configured timeout,
// converting panics into errors so the caller can degrade uniformly.
func (s *Service) complete(ctx context.Context, req Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err = s.completer.Complete(ctx, SystemPrompt(req.Phase), req.History, req.Message)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// fallback produces the deterministic template response for a phase.
func (s *Service) fallback(req Request) *Response {
	if req.Phase == domain.PhaseCommit {
		return s.handleCommit(req.Message)
	}

	resp := &Response{
		Message:    fallbackResponses[req.Phase],
		IsComplete: req.Phase == domain.PhaseRemix,
	}
	if next, ok := Advance(req.Phase, req.Message); ok {
		resp.NextPhase = &next
	}
	return resp
}

// handleCommit runs the two-step commit sub-protocol. A commitment
// statement gets a request for timing details; a message carrying both
// a start token and a duration token gets a schedule and moves to run;
// anything else is re-prompted for timing. There is no default
// schedule: a user who never supplies timing words stays in commit.
func (s *Service) handleCommit(message string) *Response {
	commit := domain.PhaseCommit

	if hasCommitment(message) {
		return &Response{
			Message:   timingPromptFirst,
			NextPhase: &commit,
		}
	}

	if hasStartToken(message) && hasDurationToken(message) {
		now := s.now()
		start := ExtractStartDate(now, message)
		duration := ExtractDuration(message)
		checkIn := start.Add(24 * time.Hour)
		run := domain.PhaseRun

		return &Response{
			Message: fmt.Sprintf("Awesome! Your experiment starts %s for %d days.\n\nI'll check in with you tomorrow to see how it's going.\n\nReady to start experimenting?",
				formatStartTime(now, start), duration),
			NextPhase:    &run,
			FollowUpTime: &checkIn,
			Details: &domain.ScheduleInfo{
				StartDate:        start,
				DurationDays:     duration,
				NextCheckIn:      checkIn,
				CheckInFrequency: "daily",
			},
		}
	}

	return &Response{
		Message:   timingPromptRetry,
		NextPhase: &commit,
	}
}
