package llm

import (
	"context"
	"sync"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// MockLLM is a deterministic CompletionClient for local mode and tests.
// It proposes the same three directions every round and lets the
// reflection role converge after a fixed number of critiques, so a full
// session runs without network access or credentials.
type MockLLM struct {
	mu            sync.Mutex
	critiques     int
	convergeAfter int
}

func NewMockLLM() *MockLLM {
	return &MockLLM{convergeAfter: 2}
}

// NewMockLLMConvergingAfter returns a mock whose reflection role emits the
// convergence marker on the n-th critique.
func NewMockLLMConvergingAfter(n int) *MockLLM {
	return &MockLLM{convergeAfter: n}
}

func (m *MockLLM) Complete(_ context.Context, role domain.AgentRole, _ string) (string, error) {
	if role == domain.RoleReflection {
		return m.critique(), nil
	}
	return mockDirections, nil
}

func (m *MockLLM) critique() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.critiques++
	if m.critiques >= m.convergeAfter {
		return mockConvergedCritique
	}
	return mockContinueCritique
}

const mockDirections = `1. Reproduce the strongest published baseline for the stated goal on an open dataset and report where it breaks.
2. Design a controlled ablation that isolates the single factor the literature disagrees about, with a pre-registered success metric.
3. Build a small-scale prototype of the proposed approach and benchmark it against the baseline under identical conditions.`

const mockContinueCritique = `Direction 1 is solid but should name the dataset explicitly. Direction 2 needs a concrete metric before it is actionable. Direction 3 depends on the first two and should state its compute budget.

CONTINUE`

const mockConvergedCritique = `The directions are now specific, measurable, and grounded in the cited work. Direction 2 in particular isolates the disputed factor cleanly. No further substantive refinement is needed.

CONVERGED`
