package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avezina/curioloop/internal/bot"
	"github.com/avezina/curioloop/internal/domain"
	"github.com/avezina/curioloop/internal/identity"
)

func newExperimentRouter(repo *fakeRepo) http.Handler {
	handler := NewExperimentHandler(NewHandler(repo, bot.NewService(nil)))
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	handler.RegisterRoutes(r)
	return r
}

func seedExperiment(repo *fakeRepo, userID, id string, updated time.Time) *domain.Experiment {
	exp := &domain.Experiment{
		ID:           id,
		UserID:       userID,
		Title:        "seeded " + id,
		Status:       domain.StatusActive,
		CurrentPhase: domain.PhaseObserve,
		StartDate:    updated,
		LastUpdated:  updated,
	}
	if repo.experiments[userID] == nil {
		repo.experiments[userID] = make(map[string]*domain.Experiment)
	}
	repo.experiments[userID][id] = exp
	return exp
}

// establish performs one request to obtain an identity cookie, then
// reuses it so subsequent requests hit the same anonymous user.
func establish(t *testing.T, router http.Handler) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("config request failed with %d", rr.Code)
	}
	return rr.Result().Cookies()
}

func userIDFromRepo(t *testing.T, repo *fakeRepo) string {
	t.Helper()
	for id := range repo.users {
		return id
	}
	t.Fatal("no user created")
	return ""
}

func doRequest(router http.Handler, method, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestListExperimentsOrdersByRecency(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)
	cookies := establish(t, router)
	userID := userIDFromRepo(t, repo)

	base := time.Now()
	seedExperiment(repo, userID, "older", base.Add(-time.Hour))
	seedExperiment(repo, userID, "newer", base)

	rr := doRequest(router, http.MethodGet, "/api/experiments", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body struct {
		Experiments []*domain.Experiment `json:"experiments"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Experiments) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(body.Experiments))
	}
	if body.Experiments[0].ID != "newer" {
		t.Fatalf("expected most recent first, got %q", body.Experiments[0].ID)
	}
}

func TestListExperimentsEmpty(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)
	cookies := establish(t, router)

	rr := doRequest(router, http.MethodGet, "/api/experiments", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body struct {
		Experiments []*domain.Experiment `json:"experiments"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Experiments == nil {
		t.Fatal("expected empty list, not null")
	}
}

func TestSwitchExperiment(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)
	cookies := establish(t, router)
	userID := userIDFromRepo(t, repo)
	seedExperiment(repo, userID, "exp-a", time.Now())

	rr := doRequest(router, http.MethodPost, "/api/experiments/exp-a/switch", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if repo.users[userID].CurrentExperimentID != "exp-a" {
		t.Fatalf("expected pointer exp-a, got %q", repo.users[userID].CurrentExperimentID)
	}
}

func TestSwitchExperimentNotFound(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)
	cookies := establish(t, router)

	rr := doRequest(router, http.MethodPost, "/api/experiments/ghost/switch", cookies)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCloseCurrentExperiment(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)
	cookies := establish(t, router)
	userID := userIDFromRepo(t, repo)
	seedExperiment(repo, userID, "exp-a", time.Now())
	repo.users[userID].CurrentExperimentID = "exp-a"

	rr := doRequest(router, http.MethodPost, "/api/experiments/close", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if repo.users[userID].CurrentExperimentID != "" {
		t.Fatal("expected pointer cleared")
	}
	if repo.experiments[userID]["exp-a"].Status != domain.StatusPaused {
		t.Fatal("expected experiment paused, not deleted")
	}
}

func TestGetMeIncludesProgress(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)
	cookies := establish(t, router)
	userID := userIDFromRepo(t, repo)
	exp := seedExperiment(repo, userID, "exp-a", time.Now())
	exp.CurrentPhase = domain.PhaseRun
	repo.users[userID].CurrentExperimentID = "exp-a"

	rr := doRequest(router, http.MethodGet, "/api/me", cookies)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body struct {
		User       *domain.User       `json:"user"`
		Experiment *domain.Experiment `json:"experiment"`
		Progress   domain.Progress    `json:"progress"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.User == nil || body.User.UserID != userID {
		t.Fatalf("unexpected user in response: %+v", body.User)
	}
	if body.Experiment == nil || body.Experiment.ID != "exp-a" {
		t.Fatal("expected current experiment in response")
	}
	if body.Progress.CurrentPhase != domain.PhaseRun {
		t.Fatalf("expected progress phase run, got %q", body.Progress.CurrentPhase)
	}
}

func TestGetConfigReportsAIState(t *testing.T) {
	repo := newFakeRepo()
	router := newExperimentRouter(repo)

	rr := doRequest(router, http.MethodGet, "/api/config", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body struct {
		AIEnabled      bool   `json:"ai_enabled"`
		WelcomeMessage string `json:"welcome_message"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.AIEnabled {
		t.Fatal("fallback-only bot must report ai_enabled false")
	}
	if body.WelcomeMessage == "" {
		t.Fatal("expected a welcome message")
	}
}

func TestHealth(t *testing.T) {
	repo := newFakeRepo()
	handler := NewHealthHandler(repo, nil)

	rr := httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	repo.pingErr = errors.New("database locked")
	rr = httptest.NewRecorder()
	handler.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 when database is down, got %d", rr.Code)
	}
}
