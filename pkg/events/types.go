// Package events defines event types and publisher interfaces for dispatch and session lifecycle events.
package events

// InvocationEvent is emitted once per dispatched action.
type InvocationEvent struct {
	Service    string `json:"service"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Timestamp  string `json:"timestamp"`
}

// Session lifecycle kinds.
const (
	SessionOpened = "opened"
	SessionClosed = "closed"
)

// SessionEvent is emitted when a heartbeat session opens or closes.
type SessionEvent struct {
	Service    string `json:"service"`
	SessionID  string `json:"sessionId"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason,omitempty"`
	Heartbeats int    `json:"heartbeats"`
	Timestamp  string `json:"timestamp"`
}
