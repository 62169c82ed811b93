package domain

// Event action labels. Kept short and display-ready: the polling client
// renders them verbatim.
const (
	ActionProcessStarted   = "Process Started"
	ActionSearching        = "Searching"
	ActionSearchResults    = "Search Results"
	ActionSearchFailed     = "Search Failed"
	ActionProposedIdea     = "Proposed Idea"
	ActionCritique         = "Critique"
	ActionConverged        = "Converged"
	ActionProcessCompleted = "Process Completed"
	ActionProcessError     = "Process Error"
)

// Event is one immutable, timestamped, agent-attributed record of work.
// Events are only ever appended; within a session their timestamps are
// non-decreasing and their order is append order.
type Event struct {
	Timestamp Timestamp
	Agent     AgentName
	Action    string
	Result    string
}

// Session represents one user-initiated research run. Its mutable fields
// (Status, Events, Result, ErrorDetail) are owned by the single orchestrator
// run driving it; everyone else reads snapshots through the session store.
type Session struct {
	ID     SessionID
	Goal   string
	Status Status

	// Events grows monotonically until the session reaches a terminal
	// status, after which it is constant.
	Events []Event

	// Result is set exactly once, on the transition to StatusCompleted.
	Result string

	// ErrorDetail is set only when Status is StatusError.
	ErrorDetail string

	CreatedAt Timestamp
	UpdatedAt Timestamp
}
