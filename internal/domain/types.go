package domain

import "time"

type SessionID string

// Status is the lifecycle state of a research session.
type Status string

const (
	StatusIdle      Status = "idle" // allocated, orchestrator not yet started
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether no transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// AgentName identifies the producer of an event in the session log.
type AgentName string

const (
	AgentGeneration AgentName = "Generation Agent"
	AgentReflection AgentName = "Reflection Agent"
	AgentSearch     AgentName = "Search Tool"
	AgentSupervisor AgentName = "Supervisor" // orchestration-level entries
)

// AgentRole selects the system instructions a completion runs under.
type AgentRole string

const (
	RoleGeneration AgentRole = "generation"
	RoleReflection AgentRole = "reflection"
)

type Timestamp = time.Time
