package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/avezina/curioloop/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()

	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo Repository, userID string) {
	t.Helper()

	now := time.Now().Truncate(time.Second)
	if err := repo.UpsertUser(context.Background(), &domain.User{
		UserID:     userID,
		Username:   "anon-" + userID,
		LastActive: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
}

func testExperiment(userID, id string) *domain.Experiment {
	now := time.Now().Truncate(time.Second)
	return &domain.Experiment{
		ID:           id,
		UserID:       userID,
		Title:        "Why do I sleep better after walking?",
		Curiosity:    "walking and sleep",
		Hypothesis:   "evening walks improve my sleep",
		Status:       domain.StatusActive,
		CurrentPhase: domain.PhaseCommit,
		StartDate:    now,
		LastUpdated:  now,
		Messages: []domain.Message{
			{ID: "m1", Content: "walking and sleep", Sender: domain.SenderUser, Timestamp: now.Add(-2 * time.Minute), Phase: domain.PhaseObserve},
			{ID: "m2", Content: "tell me more", Sender: domain.SenderBot, Timestamp: now.Add(-time.Minute), Phase: domain.PhaseObserve},
			{ID: "m3", Content: "evening walks improve my sleep", Sender: domain.SenderUser, Timestamp: now, Phase: domain.PhaseHypothesize},
		},
	}
}

func TestExperimentRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")

	want := testExperiment("u1", "exp1")
	if err := repo.SaveExperiment(ctx, want); err != nil {
		t.Fatalf("SaveExperiment failed: %v", err)
	}

	got, err := repo.GetExperiment(ctx, "u1", "exp1")
	if err != nil {
		t.Fatalf("GetExperiment failed: %v", err)
	}
	if got == nil {
		t.Fatal("experiment not found after save")
	}

	if got.Title != want.Title || got.Curiosity != want.Curiosity || got.Hypothesis != want.Hypothesis {
		t.Errorf("derived fields mismatch: %+v", got)
	}
	if got.Status != domain.StatusActive || got.CurrentPhase != domain.PhaseCommit {
		t.Errorf("status/phase mismatch: %s/%s", got.Status, got.CurrentPhase)
	}
	if !got.StartDate.Equal(want.StartDate) || !got.LastUpdated.Equal(want.LastUpdated) {
		t.Errorf("timestamps mismatch: %v/%v", got.StartDate, got.LastUpdated)
	}
	if len(got.Messages) != len(want.Messages) {
		t.Fatalf("message count = %d, want %d", len(got.Messages), len(want.Messages))
	}
	for i, m := range got.Messages {
		w := want.Messages[i]
		if m.ID != w.ID || m.Content != w.Content || m.Sender != w.Sender || m.Phase != w.Phase {
			t.Errorf("message %d mismatch: %+v", i, m)
		}
		if !m.Timestamp.Equal(w.Timestamp) {
			t.Errorf("message %d timestamp = %v, want %v", i, m.Timestamp, w.Timestamp)
		}
	}
}

func TestSaveExperimentIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")

	exp := testExperiment("u1", "exp1")
	if err := repo.SaveExperiment(ctx, exp); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	exp.CurrentPhase = domain.PhaseRun
	exp.Title = "updated title"
	if err := repo.SaveExperiment(ctx, exp); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	list, err := repo.ListExperiments(ctx, "u1")
	if err != nil {
		t.Fatalf("ListExperiments failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("experiment count = %d after double save, want 1", len(list))
	}
	if list[0].CurrentPhase != domain.PhaseRun || list[0].Title != "updated title" {
		t.Errorf("second save did not replace fields: %+v", list[0])
	}
}

func TestSaveExperimentSetsPointer(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")

	if err := repo.SaveExperiment(ctx, testExperiment("u1", "exp1")); err != nil {
		t.Fatalf("SaveExperiment failed: %v", err)
	}

	user, err := repo.GetUser(ctx, "u1")
	if err != nil || user == nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.CurrentExperimentID != "exp1" {
		t.Errorf("pointer = %q, want exp1", user.CurrentExperimentID)
	}
	if user.TotalExperiments != 1 {
		t.Errorf("TotalExperiments = %d, want 1", user.TotalExperiments)
	}
}

func TestSwitchExperiment(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")

	if err := repo.SaveExperiment(ctx, testExperiment("u1", "exp1")); err != nil {
		t.Fatalf("save exp1 failed: %v", err)
	}
	if err := repo.SaveExperiment(ctx, testExperiment("u1", "exp2")); err != nil {
		t.Fatalf("save exp2 failed: %v", err)
	}

	if err := repo.SwitchExperiment(ctx, "u1", "exp1"); err != nil {
		t.Fatalf("SwitchExperiment failed: %v", err)
	}
	user, _ := repo.GetUser(ctx, "u1")
	if user.CurrentExperimentID != "exp1" {
		t.Errorf("pointer = %q, want exp1", user.CurrentExperimentID)
	}

	// Switching to a nonexistent experiment is a no-op, not an error.
	if err := repo.SwitchExperiment(ctx, "u1", "ghost"); err != nil {
		t.Fatalf("SwitchExperiment to missing id errored: %v", err)
	}
	user, _ = repo.GetUser(ctx, "u1")
	if user.CurrentExperimentID != "exp1" {
		t.Errorf("pointer moved to %q after no-op switch", user.CurrentExperimentID)
	}
}

func TestCloseCurrentExperiment(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()
	seedUser(t, repo, "u1")

	if err := repo.SaveExperiment(ctx, testExperiment("u1", "exp1")); err != nil {
		t.Fatalf("SaveExperiment failed: %v", err)
	}

	if err := repo.CloseCurrentExperiment(ctx, "u1"); err != nil {
		t.Fatalf("CloseCurrentExperiment failed: %v", err)
	}

	user, _ := repo.GetUser(ctx, "u1")
	if user.CurrentExperimentID != "" {
		t.Errorf("pointer not cleared: %q", user.CurrentExperimentID)
	}

	exp, err := repo.GetExperiment(ctx, "u1", "exp1")
	if err != nil || exp == nil {
		t.Fatalf("experiment lost after close: %v", err)
	}
	if exp.Status != domain.StatusPaused {
		t.Errorf("status = %s, want paused", exp.Status)
	}

	// Closing with no current experiment is harmless.
	if err := repo.CloseCurrentExperiment(ctx, "u1"); err != nil {
		t.Fatalf("second close errored: %v", err)
	}
}

func TestGetExperimentMissing(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)

	exp, err := repo.GetExperiment(context.Background(), "u1", "nope")
	if err != nil {
		t.Fatalf("GetExperiment errored: %v", err)
	}
	if exp != nil {
		t.Errorf("expected nil for missing experiment, got %+v", exp)
	}
}
