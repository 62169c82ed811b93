package agentflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PabloGalante/noesis-agent/internal/domain"
	"github.com/PabloGalante/noesis-agent/internal/observability"
)

const (
	defaultMaxRounds     = 3
	defaultSearchTimeout = 15 * time.Second
)

// Orchestrator drives one research session from its first supervisor event
// to a terminal status. It owns every state transition and is the only
// writer of the session's event log; agents and the search client hand
// their output back to it.
type Orchestrator struct {
	store      domain.SessionStore
	search     domain.SearchClient
	generation Agent
	reflection Agent

	maxRounds     int
	searchTimeout time.Duration
}

// NewDefaultOrchestrator constructs the generation -> reflection pipeline
// over the given adapters. Non-positive limits select the defaults.
func NewDefaultOrchestrator(
	store domain.SessionStore,
	llm domain.CompletionClient,
	search domain.SearchClient,
	maxRounds int,
	searchTimeout time.Duration,
) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if searchTimeout <= 0 {
		searchTimeout = defaultSearchTimeout
	}
	return &Orchestrator{
		store:         store,
		search:        search,
		generation:    NewGenerationAgent(llm),
		reflection:    NewReflectionAgent(llm),
		maxRounds:     maxRounds,
		searchTimeout: searchTimeout,
	}
}

// Run executes the whole pipeline for one session. The session must already
// be running; Run leaves it completed or errored, never in between. Not
// reentrant: exactly one Run drives a given session.
func (o *Orchestrator) Run(ctx context.Context, id domain.SessionID, goal string) {
	ctx = observability.WithSessionID(ctx, string(id))
	log := observability.LoggerFromContext(ctx)
	start := time.Now()
	log.Info("research session started", "goal", goal)

	r := &run{o: o, log: log, id: id, goal: goal}

	if err := r.append(domain.Event{
		Agent:  domain.AgentSupervisor,
		Action: domain.ActionProcessStarted,
		Result: "Goal: " + goal,
	}); err != nil {
		r.fail(err)
		return
	}

	searchResults := r.searchStep(ctx)

	var fragment string
	var lastIdeas []string
	converged := false

	for round := 1; round <= o.maxRounds; round++ {
		log.Info("research round started", "round", round)

		genOut, err := r.runAgent(ctx, o.generation, searchResults, round)
		if err != nil {
			r.fail(err)
			return
		}
		if err := r.appendAll(genOut.Events); err != nil {
			r.fail(err)
			return
		}
		lastIdeas = ideaTexts(genOut.Events)

		reflOut, err := r.runAgent(ctx, o.reflection, searchResults, round)
		if err != nil {
			r.fail(err)
			return
		}
		if err := r.appendAll(reflOut.Events); err != nil {
			r.fail(err)
			return
		}

		if reflOut.ResultFragment != "" {
			fragment = reflOut.ResultFragment
		}
		if reflOut.Converged {
			converged = true
			log.Info("research converged", "round", round)
			break
		}
	}

	result := synthesizeResult(goal, lastIdeas, fragment)

	if err := r.append(domain.Event{
		Agent:  domain.AgentSupervisor,
		Action: domain.ActionProcessCompleted,
		Result: "Research results generated",
	}); err != nil {
		r.fail(err)
		return
	}
	if err := o.store.Complete(id, result); err != nil {
		log.Error("completing session failed", "error", err)
		return
	}

	log.Info("research session completed",
		"converged", converged,
		"events", len(r.events),
		"elapsed_ms", time.Since(start).Milliseconds())
}

// run is the per-session working state of one Run call. events mirrors the
// session log; the mirror is trustworthy because the orchestrator is the
// sole writer.
type run struct {
	o      *Orchestrator
	log    *slog.Logger
	id     domain.SessionID
	goal   string
	events []domain.Event
}

func (r *run) append(ev domain.Event) error {
	if err := r.o.store.AppendEvent(r.id, ev); err != nil {
		return fmt.Errorf("appending %q event: %w", ev.Action, err)
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *run) appendAll(events []domain.Event) error {
	for _, ev := range events {
		if err := r.append(ev); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) runAgent(ctx context.Context, ag Agent, searchResults []domain.SearchResult, round int) (AgentOutput, error) {
	start := time.Now()
	r.log.Info("agent run start", "agent", string(ag.Name()), "round", round)

	out, err := ag.Run(ctx, AgentInput{
		Goal:          r.goal,
		Events:        append([]domain.Event(nil), r.events...),
		SearchResults: searchResults,
		Round:         round,
	})
	if err != nil {
		r.log.Error("agent failed", "agent", string(ag.Name()), "error", err)
		return AgentOutput{}, fmt.Errorf("agent %s: %w", ag.Name(), err)
	}

	r.log.Info("agent run end",
		"agent", string(ag.Name()),
		"events", len(out.Events),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// searchStep issues the literature query derived from the goal. Search
// failures are recorded as events and swallowed: the pipeline proceeds with
// whatever was obtained, possibly nothing.
func (r *run) searchStep(ctx context.Context) []domain.SearchResult {
	if err := r.append(domain.Event{
		Agent:  domain.AgentSearch,
		Action: domain.ActionSearching,
		Result: "Query: " + r.goal,
	}); err != nil {
		r.log.Error("recording search query failed", "error", err)
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, r.o.searchTimeout)
	defer cancel()

	results, err := r.o.search.Search(sctx, r.goal)
	if err != nil {
		r.log.Warn("literature search failed", "error", err)
		if aerr := r.append(domain.Event{
			Agent:  domain.AgentSearch,
			Action: domain.ActionSearchFailed,
			Result: err.Error(),
		}); aerr != nil {
			r.log.Error("recording search failure failed", "error", aerr)
		}
		return nil
	}

	if aerr := r.append(domain.Event{
		Agent:  domain.AgentSearch,
		Action: domain.ActionSearchResults,
		Result: summarizeResults(results),
	}); aerr != nil {
		r.log.Error("recording search results failed", "error", aerr)
	}
	return results
}

// fail moves the session to its error state. The supervisor event is
// best-effort; the status transition is what the client observes.
func (r *run) fail(err error) {
	detail := "Error in research process: " + err.Error()

	if aerr := r.o.store.AppendEvent(r.id, domain.Event{
		Agent:  domain.AgentSupervisor,
		Action: domain.ActionProcessError,
		Result: detail,
	}); aerr != nil {
		r.log.Error("recording failure event failed", "error", aerr)
	}
	if ferr := r.o.store.Fail(r.id, detail); ferr != nil {
		r.log.Error("failing session failed", "error", ferr)
	}

	r.log.Error("research session failed", "error", err)
}

func summarizeResults(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "No results found"
	}
	titles := make([]string, 0, len(results))
	for _, r := range results {
		titles = append(titles, r.Title)
	}
	return fmt.Sprintf("Found %d results: %s", len(results), strings.Join(titles, "; "))
}

// synthesizeResult builds the final artifact from the last accepted
// idea/critique pair.
func synthesizeResult(goal string, ideas []string, critique string) string {
	var b strings.Builder

	b.WriteString("Research directions for: ")
	b.WriteString(goal)
	b.WriteString("\n\n")
	for i, idea := range ideas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, idea)
	}
	if critique != "" {
		b.WriteString("\nAssessment:\n")
		b.WriteString(critique)
	}

	return b.String()
}
