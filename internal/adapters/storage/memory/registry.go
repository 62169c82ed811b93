package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/PabloGalante/noesis-agent/internal/domain"
)

// Registry is the process-wide, in-memory session store. One instance is
// created at startup and injected into the research service; there is no
// package-level state. A single RWMutex guards the map and every session in
// it: writers (one orchestrator run per session) serialize through the
// mutating methods, and Snapshot hands out deep copies so a polling reader
// can never observe a partially-written event or hold a live pointer into
// registry state.
//
// Sessions are never evicted while the process lives.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*domain.Session),
		now:      time.Now,
	}
}

// CreateSession registers a freshly allocated session. The registry keeps
// its own copy; the caller's pointer stays inert.
func (r *Registry) CreateSession(session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("session %s already exists", session.ID)
	}

	cp := *session
	cp.Events = append([]domain.Event(nil), session.Events...)
	r.sessions[session.ID] = &cp
	return nil
}

// Snapshot returns a consistent copy of the session: status, result and the
// event prefix that existed at call time. Successive snapshots of the same
// session never shrink the event list.
func (r *Registry) Snapshot(id domain.SessionID) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}

	cp := *sess
	cp.Events = append([]domain.Event(nil), sess.Events...)
	return cp, nil
}

// MarkRunning moves the session out of its transient idle state. Valid only
// once, before any agent executes.
func (r *Registry) MarkRunning(id domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sess.Status != domain.StatusIdle {
		return fmt.Errorf("%w: %s -> running", domain.ErrInvalidTransition, sess.Status)
	}

	sess.Status = domain.StatusRunning
	sess.UpdatedAt = r.now()
	return nil
}

// AppendEvent adds one event to the session log. Rejected once the session
// is terminal. A zero timestamp is stamped here; a lagging one is clamped to
// the previous event's timestamp so the log stays non-decreasing even if the
// caller's clock regresses.
func (r *Registry) AppendEvent(id domain.SessionID, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sess.Status.Terminal() {
		return fmt.Errorf("%w: append after %s", domain.ErrInvalidTransition, sess.Status)
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	if n := len(sess.Events); n > 0 && ev.Timestamp.Before(sess.Events[n-1].Timestamp) {
		ev.Timestamp = sess.Events[n-1].Timestamp
	}

	sess.Events = append(sess.Events, ev)
	sess.UpdatedAt = r.now()
	return nil
}

// Complete transitions running -> completed and sets the result, exactly
// once. An empty result is an invariant violation, not a valid completion.
func (r *Registry) Complete(id domain.SessionID, result string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sess.Status != domain.StatusRunning {
		return fmt.Errorf("%w: %s -> completed", domain.ErrInvalidTransition, sess.Status)
	}
	if result == "" {
		return fmt.Errorf("%w: completed with empty result", domain.ErrInvalidTransition)
	}

	sess.Status = domain.StatusCompleted
	sess.Result = result
	sess.UpdatedAt = r.now()
	return nil
}

// Fail transitions running -> error and records the human-readable detail.
func (r *Registry) Fail(id domain.SessionID, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if sess.Status != domain.StatusRunning {
		return fmt.Errorf("%w: %s -> error", domain.ErrInvalidTransition, sess.Status)
	}

	sess.Status = domain.StatusError
	sess.ErrorDetail = detail
	sess.UpdatedAt = r.now()
	return nil
}
