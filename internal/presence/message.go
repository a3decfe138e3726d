package presence

import (
	"time"
)

type MessageType string

const (
	TypeConnectionEstablished MessageType = "connection_established"
	TypePong                  MessageType = "pong"
	TypeUserStatusUpdate      MessageType = "user_status_update"
	TypeTimeEntryUpdate       MessageType = "time_entry_update"
	TypeProjectUpdate         MessageType = "project_update"
	TypeTeamActivity          MessageType = "team_activity"
)

// Message is the envelope of every server-to-client frame.
type Message struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type ConnectionEstablished struct {
	UserID      string   `json:"user_id"`
	OnlineUsers []string `json:"online_users"`
}

type UserStatus struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online" or "offline"
}

type TimeEntryEvent struct {
	UserID    string `json:"user_id"`
	Action    string `json:"action,omitempty"` // "started", "stopped", "updated"
	TimeEntry any    `json:"time_entry"`
}

type ProjectEvent struct {
	Action  string `json:"action,omitempty"`
	Project any    `json:"project"`
}

type TeamActivityEvent struct {
	UserID   string `json:"user_id"`
	Activity any    `json:"activity"`
}
