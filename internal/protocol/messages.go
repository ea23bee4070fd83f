package protocol

import "time"

// MessageType identifies websocket event payload variants.
type MessageType string

const (
	TypeStatusEntry  MessageType = "status_entry"
	TypeNotification MessageType = "notification"
	TypeStateUpdate  MessageType = "state_update"
)

// StatusEntryEvent mirrors one appended status log line.
type StatusEntryEvent struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

// NotificationEvent is the blocking-modal primitive: the UI must surface
// it to the user before continuing.
type NotificationEvent struct {
	Type    MessageType `json:"type"`
	Level   string      `json:"level"`
	Message string      `json:"message"`
}

const (
	LevelInfo  = "info"
	LevelError = "error"
)

// StateUpdateEvent tells the UI to refresh affordances from the state
// snapshot endpoint.
type StateUpdateEvent struct {
	Type MessageType `json:"type"`
}
