package agentflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// Agent is one pipeline role. Run consumes the goal and the event history
// and returns the events to append; the orchestrator is the only writer of
// the session log, so agents never touch the store themselves.
type Agent interface {
	Name() domain.AgentName
	Run(ctx context.Context, in AgentInput) (AgentOutput, error)
}

// AgentInput carries everything a role may consult. Events is a snapshot of
// the session log so far and is the agent's only memory of prior rounds.
type AgentInput struct {
	Goal          string
	Events        []domain.Event
	SearchResults []domain.SearchResult
	Round         int
}

// AgentOutput is what a role produced: the events to append, whether the
// role considers the session converged, and a candidate fragment for the
// final result.
type AgentOutput struct {
	Events         []domain.Event
	Converged      bool
	ResultFragment string
}

// formatSearchResults renders snippets the way the prompts reference them:
// numbered, title first, source in brackets.
func formatSearchResults(results []domain.SearchResult) string {
	if len(results) == 0 {
		return "No literature snippets are available for this goal."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s [%s]\n", i+1, r.Title, r.Source)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// latestCritique returns the most recent critique text, or "" before the
// first reflection round.
func latestCritique(events []domain.Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Action == domain.ActionCritique {
			return events[i].Result
		}
	}
	return ""
}

// currentRoundIdeas returns the idea texts proposed since the last
// critique, i.e. the set the reflection role is asked to assess.
func currentRoundIdeas(events []domain.Event) []string {
	var ideas []string
	for _, ev := range events {
		switch ev.Action {
		case domain.ActionProposedIdea:
			ideas = append(ideas, ev.Result)
		case domain.ActionCritique:
			ideas = nil
		}
	}
	return ideas
}

// ideaTexts collects the Proposed Idea payloads from a slice of events, in
// order, without the round-reset behavior of currentRoundIdeas.
func ideaTexts(events []domain.Event) []string {
	var ideas []string
	for _, ev := range events {
		if ev.Action == domain.ActionProposedIdea {
			ideas = append(ideas, ev.Result)
		}
	}
	return ideas
}
