package agentflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// maxIdeasPerRound caps how many idea events one generation round may append.
const maxIdeasPerRound = 5

// GenerationAgent proposes research directions for the goal, grounded in
// the search snippets and refined against the latest critique.
type GenerationAgent struct {
	llm domain.CompletionClient
}

func NewGenerationAgent(llm domain.CompletionClient) *GenerationAgent {
	return &GenerationAgent{llm: llm}
}

func (a *GenerationAgent) Name() domain.AgentName {
	return domain.AgentGeneration
}

func (a *GenerationAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	prompt := buildGenerationPrompt(in)

	completion, err := a.llm.Complete(ctx, domain.RoleGeneration, prompt)
	if err != nil {
		return AgentOutput{}, err
	}

	ideas := parseIdeas(completion)
	if len(ideas) == 0 {
		// One retry on an unusable completion before escalating.
		completion, err = a.llm.Complete(ctx, domain.RoleGeneration, prompt)
		if err != nil {
			return AgentOutput{}, err
		}
		ideas = parseIdeas(completion)
	}
	if len(ideas) == 0 {
		return AgentOutput{}, fmt.Errorf("generation agent: completion contained no usable ideas")
	}

	out := AgentOutput{}
	for _, idea := range ideas {
		out.Events = append(out.Events, domain.Event{
			Agent:  a.Name(),
			Action: domain.ActionProposedIdea,
			Result: idea,
		})
	}
	return out, nil
}

func buildGenerationPrompt(in AgentInput) string {
	var b strings.Builder

	b.WriteString("Research goal:\n")
	b.WriteString(in.Goal)
	b.WriteString("\n\nLiterature snippets:\n")
	b.WriteString(formatSearchResults(in.SearchResults))

	if critique := latestCritique(in.Events); critique != "" {
		b.WriteString("\n\nCritique of the previous round:\n")
		b.WriteString(critique)
		b.WriteString("\n\nRefine the research directions so the critique no longer applies.")
	} else {
		b.WriteString("\n\nPropose research directions that advance this goal.")
	}

	return b.String()
}

// ideaMarker matches the start of a numbered or bulleted list item.
var ideaMarker = regexp.MustCompile(`^\s*(?:\d+[.)]\s+|[-*•]\s+)`)

// parseIdeas splits a completion into discrete idea statements. List items
// win when the text contains any; otherwise blank-line-separated paragraphs
// are used. Text before the first list item is treated as preamble and
// dropped.
func parseIdeas(text string) []string {
	lines := strings.Split(text, "\n")

	marked := false
	for _, l := range lines {
		if ideaMarker.MatchString(l) {
			marked = true
			break
		}
	}

	var ideas []string
	add := func(parts []string) {
		s := strings.TrimSpace(strings.Join(parts, " "))
		if s != "" {
			ideas = append(ideas, s)
		}
	}

	if marked {
		var current []string
		for _, l := range lines {
			if ideaMarker.MatchString(l) {
				add(current)
				current = []string{strings.TrimSpace(ideaMarker.ReplaceAllString(l, ""))}
				continue
			}
			t := strings.TrimSpace(l)
			if t == "" || len(current) == 0 {
				continue
			}
			current = append(current, t)
		}
		add(current)
	} else {
		for _, block := range strings.Split(text, "\n\n") {
			add(strings.Fields(block))
		}
	}

	if len(ideas) > maxIdeasPerRound {
		ideas = ideas[:maxIdeasPerRound]
	}
	return ideas
}
