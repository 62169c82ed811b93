package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/noesis-agent/internal/app/agentflow"
	"github.com/PabloGalante/noesis-agent/internal/domain"
	"github.com/PabloGalante/noesis-agent/internal/observability"
	"github.com/PabloGalante/noesis-agent/internal/worker"
)

// CompletionFactory builds a per-session completion client from the API key
// the start request carried. The key lives only inside the returned client.
type CompletionFactory func(ctx context.Context, apiKey string) (domain.CompletionClient, error)

// SearchFactory builds a per-session search client. The web-search key is
// optional; an empty key selects the academic archive alone.
type SearchFactory func(serpAPIKey string) domain.SearchClient

// Service is the application boundary for research sessions: it validates
// start requests, allocates sessions, schedules orchestrator runs on the
// worker pool, and serves status snapshots to the polling handlers.
type Service struct {
	store       domain.SessionStore
	pool        *worker.Pool
	completions CompletionFactory
	searches    SearchFactory

	maxRounds     int
	searchTimeout time.Duration
	now           func() time.Time
}

func NewService(
	store domain.SessionStore,
	pool *worker.Pool,
	completions CompletionFactory,
	searches SearchFactory,
	maxRounds int,
	searchTimeout time.Duration,
) *Service {
	return &Service{
		store:         store,
		pool:          pool,
		completions:   completions,
		searches:      searches,
		maxRounds:     maxRounds,
		searchTimeout: searchTimeout,
		now:           time.Now,
	}
}

type StartResearchInput struct {
	Goal             string
	CompletionAPIKey string
	SearchAPIKey     string
}

type StartResearchOutput struct {
	SessionID domain.SessionID
}

// StartResearch allocates a session, moves it to running, and hands the
// orchestrator run to the worker pool. It returns before any agent executes;
// progress is observable only through GetStatus.
func (s *Service) StartResearch(ctx context.Context, in StartResearchInput) (*StartResearchOutput, error) {
	goal := strings.TrimSpace(in.Goal)
	if goal == "" {
		return nil, fmt.Errorf("%w: research_goal is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.CompletionAPIKey) == "" {
		return nil, fmt.Errorf("%w: completion_api_key is required", domain.ErrInvalidInput)
	}

	log := observability.LoggerFromContext(ctx)
	log.Info("starting research session", "goal", goal)

	llm, err := s.completions(ctx, in.CompletionAPIKey)
	if err != nil {
		log.Error("building completion client failed", "error", err)
		return nil, err
	}
	search := s.searches(strings.TrimSpace(in.SearchAPIKey))

	now := s.now()
	session := &domain.Session{
		ID:        newSessionID(),
		Goal:      goal,
		Status:    domain.StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateSession(session); err != nil {
		log.Error("creating session failed", "error", err)
		return nil, err
	}
	if err := s.store.MarkRunning(session.ID); err != nil {
		log.Error("marking session running failed", "error", err)
		return nil, err
	}

	orch := agentflow.NewDefaultOrchestrator(s.store, llm, search, s.maxRounds, s.searchTimeout)

	id := session.ID
	requestID := observability.RequestID(ctx)
	err = s.pool.Submit(func(taskCtx context.Context) {
		// The request context dies with the HTTP response; only its
		// request id is carried over for log correlation.
		if requestID != "" {
			taskCtx = observability.WithRequestID(taskCtx, requestID)
		}
		orch.Run(taskCtx, id, goal)
	})
	if err != nil {
		detail := "Error in research process: no worker capacity available"
		if ferr := s.store.Fail(id, detail); ferr != nil {
			log.Error("failing unscheduled session failed", "error", ferr)
		}
		log.Warn("research run rejected by worker pool", "session_id", string(id), "error", err)
		return nil, fmt.Errorf("scheduling research run: %w", err)
	}

	log.Info("research session scheduled", "session_id", string(id))
	return &StartResearchOutput{SessionID: id}, nil
}

// GetStatus returns a read-only snapshot of the session: its status, the
// event prefix that existed at call time, and the result or error detail
// once terminal. Polling it has no side effects at any frequency.
func (s *Service) GetStatus(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	sess, err := s.store.Snapshot(id)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("status lookup failed",
			"session_id", string(id), "error", err)
		return domain.Session{}, err
	}
	return sess, nil
}

func newSessionID() domain.SessionID {
	return domain.SessionID("research_" + uuid.NewString())
}
