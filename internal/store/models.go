package store

import "time"

// SessionKind tells planner sessions from spec pipeline runs.
type SessionKind string

const (
	KindPlan SessionKind = "plan" // goal → TODO → schedule planning session
	KindSpec SessionKind = "spec" // requirement → API spec pipeline run
)

// SessionStatus is where a session stands.
type SessionStatus string

const (
	StatusRunning       SessionStatus = "running"
	StatusAwaitingInput SessionStatus = "awaiting_input"
	StatusFinished      SessionStatus = "finished"
	StatusPartial       SessionStatus = "partial"
	StatusFailed        SessionStatus = "failed"
)

// Session is one persisted planner session or spec run.
// State holds the pipeline state as JSON; its shape depends on Kind.
type Session struct {
	ID          string        `json:"id"`
	Kind        SessionKind   `json:"kind"`
	Title       string        `json:"title"` // goal or project description
	Status      SessionStatus `json:"status"`
	CurrentNode string        `json:"current_node,omitempty"`
	State       string        `json:"state,omitempty"`
	Degraded    string        `json:"degraded,omitempty"` // comma separated agent names
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ShortID is the first eight characters of the ID, enough to address a
// session on the command line.
func (s Session) ShortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// Event represents something that happened in a session.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Agent     string    `json:"agent,omitempty"`
	Type      string    `json:"event_type"` // created, node, revised, applied, exported, relay
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RelayResult is one agent's output collected by a spec run.
type RelayResult struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Agent     string    `json:"agent"`
	Status    string    `json:"status"` // completed, failed
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Chunk is an indexed document passage and its embedding.
type Chunk struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Seq       int       `json:"seq"` // position within the source
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
