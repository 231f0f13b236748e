package store

import "github.com/RichardoC/aether-chat/internal/models"

type EventType string

const (
	EventChatroomCreated EventType = "chatroom.created"
	EventChatroomDeleted EventType = "chatroom.deleted"
	EventActiveChanged   EventType = "chatroom.active"
	EventMessageAdded    EventType = "message.added"
	EventTyping          EventType = "typing"
	EventTheme           EventType = "theme"
)

// Event describes one committed change to a user's state.
type Event struct {
	Type       EventType        `json:"type"`
	UserID     string           `json:"-"`
	ChatroomID string           `json:"chatroomId,omitempty"`
	Chatroom   *models.Chatroom `json:"chatroom,omitempty"`
	Message    *models.Message  `json:"message,omitempty"`
	Typing     *bool            `json:"isTyping,omitempty"`
	IsDark     *bool            `json:"isDark,omitempty"`
}
