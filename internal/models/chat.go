package models

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	// RoleUser is a message typed by the user.
	RoleUser ChatRole = "user"
	// RoleAssistant is a reply produced by the backend assistant.
	RoleAssistant ChatRole = "assistant"
	// RoleSystem is a server-injected message.
	RoleSystem ChatRole = "system"
)

// ChatMessage is one exchange in an evaluation Q&A session.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
