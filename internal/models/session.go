package models

// SessionStatus is the lifecycle state of a session window.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is one agent working window. It transitions active → completed
// exactly once; ending an already-completed session is a Conflict.
type Session struct {
	ID        string        `json:"id"`
	Agent     string        `json:"agent"`
	ProjectID string        `json:"projectId,omitempty"`
	StartedAt string        `json:"startedAt"`
	EndedAt   string        `json:"endedAt,omitempty"`
	Status    SessionStatus `json:"status"`
	Summary   string        `json:"summary,omitempty"`
}
