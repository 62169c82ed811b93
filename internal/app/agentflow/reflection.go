package agentflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// Markers the reflection prompt asks the model to end its critique with.
const (
	convergedMarker = "CONVERGED"
	continueMarker  = "CONTINUE"
)

// ReflectionAgent critiques the current round's ideas and decides whether
// another round would still improve them.
type ReflectionAgent struct {
	llm domain.CompletionClient
}

func NewReflectionAgent(llm domain.CompletionClient) *ReflectionAgent {
	return &ReflectionAgent{llm: llm}
}

func (a *ReflectionAgent) Name() domain.AgentName {
	return domain.AgentReflection
}

func (a *ReflectionAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	ideas := currentRoundIdeas(in.Events)
	if len(ideas) == 0 {
		return AgentOutput{}, fmt.Errorf("reflection agent: no ideas to critique")
	}

	prompt := buildReflectionPrompt(in, ideas)

	critique, converged, err := a.requestCritique(ctx, prompt)
	if err != nil {
		return AgentOutput{}, err
	}

	out := AgentOutput{
		Converged:      converged,
		ResultFragment: critique,
		Events: []domain.Event{{
			Agent:  a.Name(),
			Action: domain.ActionCritique,
			Result: critique,
		}},
	}
	if converged {
		out.Events = append(out.Events, domain.Event{
			Agent:  a.Name(),
			Action: domain.ActionConverged,
			Result: "No further refinement needed",
		})
	}
	return out, nil
}

// requestCritique calls the model and retries once when the critique body
// comes back empty (e.g. a bare marker line).
func (a *ReflectionAgent) requestCritique(ctx context.Context, prompt string) (string, bool, error) {
	completion, err := a.llm.Complete(ctx, domain.RoleReflection, prompt)
	if err != nil {
		return "", false, err
	}

	critique, converged := splitConvergenceMarker(completion)
	if critique == "" {
		completion, err = a.llm.Complete(ctx, domain.RoleReflection, prompt)
		if err != nil {
			return "", false, err
		}
		critique, converged = splitConvergenceMarker(completion)
	}
	if critique == "" {
		return "", false, fmt.Errorf("reflection agent: completion contained no critique")
	}
	return critique, converged, nil
}

func buildReflectionPrompt(in AgentInput, ideas []string) string {
	var b strings.Builder

	b.WriteString("Research goal:\n")
	b.WriteString(in.Goal)

	b.WriteString("\n\nProposed research directions:\n")
	for i, idea := range ideas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, idea)
	}

	b.WriteString("\nLiterature snippets:\n")
	b.WriteString(formatSearchResults(in.SearchResults))

	fmt.Fprintf(&b, "\n\nCritique these directions (round %d).", in.Round)

	return b.String()
}

// splitConvergenceMarker strips the final CONVERGED/CONTINUE line from a
// completion and reports whether the model declared convergence.
func splitConvergenceMarker(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		body := strings.TrimSpace(strings.Join(lines[:i], "\n"))
		switch {
		case strings.EqualFold(t, convergedMarker):
			return body, true
		case strings.EqualFold(t, continueMarker):
			return body, false
		default:
			return strings.TrimSpace(text), false
		}
	}
	return "", false
}
