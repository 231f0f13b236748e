package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Image     string    `json:"image,omitempty"` // data URL
}

// Chatroom holds its messages in display order.
type Chatroom struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Clone returns a copy that shares no slice memory with c.
func (c *Chatroom) Clone() *Chatroom {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}

// MessageDraft is a message before the store assigns its id and timestamp.
type MessageDraft struct {
	Content string `json:"content"`
	Role    Role   `json:"role"`
	Image   string `json:"image,omitempty"`
}
