package domain

import "context"

// CompletionClient defines how the core requests a text completion from a
// language-model provider. The role selects the system instructions the
// completion runs under.
type CompletionClient interface {
	Complete(ctx context.Context, role AgentRole, prompt string) (string, error)
}

// SearchResult is a single ranked snippet returned by a literature source.
type SearchResult struct {
	Source    string // "arxiv" or "serpapi"
	Title     string
	URL       string
	Snippet   string
	Authors   []string  // populated by arXiv only
	Published Timestamp // zero when the source does not report a date
}

// SearchClient runs one literature query across the configured sources.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// SessionStore holds every session created during the process lifetime and
// is the synchronization boundary between the HTTP layer and the
// orchestrator run that owns each session. Snapshot is safe to call from
// any goroutine at any frequency; the mutating methods serialize through
// the store and enforce the idle -> running -> {completed, error} machine.
type SessionStore interface {
	CreateSession(session *Session) error
	Snapshot(id SessionID) (Session, error)
	MarkRunning(id SessionID) error
	AppendEvent(id SessionID, ev Event) error
	Complete(id SessionID, result string) error
	Fail(id SessionID, detail string) error
}
